package model

import "time"

// Worker is a registered executor endpoint.
type Worker struct {
	ID           string    `json:"worker_id"`
	Endpoint     string    `json:"endpoint"`
	RegisteredAt time.Time `json:"registered_at"`
}
