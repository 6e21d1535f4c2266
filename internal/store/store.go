package store

import (
	"context"
	"errors"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

// ErrInvalidTransition is returned when a result status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ResultStats holds aggregate statistics over final results.
type ResultStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for final multiplication results.
// Only pending results may be finished, so each submission is delivered
// exactly once.
type Store interface {
	CreateResult(ctx context.Context, r *model.Result) error
	GetResult(ctx context.Context, id string) (*model.Result, error)
	ListResults(ctx context.Context, limit, offset int) ([]*model.Result, int, error)
	CompleteResult(ctx context.Context, id string, m matrix.Matrix, durationMS int) error
	FailResult(ctx context.Context, id, reason string, durationMS int) error
	GetResultStats(ctx context.Context) (*ResultStats, error)
	Close() error
}
