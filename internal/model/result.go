package model

import (
	"time"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
)

// Result status constants.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Result is the final answer of a client submission as persisted by the
// coordinator.
type Result struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	ShapeA     matrix.Shape  `json:"shape_a"`
	ShapeB     matrix.Shape  `json:"shape_b"`
	Matrix     matrix.Matrix `json:"matrix,omitempty"`
	Error      string        `json:"error,omitempty"`
	DurationMS *int          `json:"duration_ms,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
