// Package executor runs tasks on a worker. A multiplication small enough for
// the base case is computed directly; a larger one is split into the seven
// Strassen sub-products, each handed back to the coordinator for
// redistribution. A combine assembles a product from its seven sub-products.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

// DefaultBaseCaseSize is the largest dimension multiplied directly.
const DefaultBaseCaseSize = 2

// Coordinator is the set of callbacks a worker makes while processing.
type Coordinator interface {
	ReturnSubtask(ctx context.Context, a, b matrix.Matrix, parent string, slot int) (string, error)
	ReportResult(ctx context.Context, id string, m matrix.Matrix) error
	ReportFailure(ctx context.Context, id, reason string) error
}

// Executor processes tasks asynchronously on behalf of one worker.
type Executor struct {
	coord    Coordinator
	baseCase int
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates an executor. A baseCase below 1 is replaced by DefaultBaseCaseSize.
func New(c Coordinator, baseCase int, logger *slog.Logger) *Executor {
	if baseCase < 1 {
		baseCase = DefaultBaseCaseSize
	}
	return &Executor{
		coord:    c,
		baseCase: baseCase,
		logger:   logger,
	}
}

// Submit starts processing t in a goroutine and returns immediately.
func (e *Executor) Submit(t model.Task) {
	e.wg.Go(func() {
		e.run(t)
	})
}

// Wait blocks until all in-flight tasks complete.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// run processes t and reports any failure to the coordinator.
func (e *Executor) run(t model.Task) {
	tasksInFlight.Inc()
	defer tasksInFlight.Dec()

	ctx := context.Background()
	err := e.Process(ctx, t)
	if err == nil {
		return
	}

	e.logger.Error("task failed", "task_id", t.TaskID(), "type", string(t.Type()), "error", err)
	if rerr := e.coord.ReportFailure(ctx, t.TaskID(), err.Error()); rerr != nil {
		e.logger.Error("failed to report task failure", "task_id", t.TaskID(), "error", rerr)
	}
}

// Process executes t synchronously.
func (e *Executor) Process(ctx context.Context, t model.Task) error {
	start := time.Now()
	var outcome string
	var err error

	switch t := t.(type) {
	case *model.MultiplyTask:
		outcome, err = e.multiply(ctx, t)
	case *model.CombineTask:
		outcome, err = e.combine(ctx, t)
	default:
		return fmt.Errorf("process task: %w: unsupported variant %T", model.ErrInvalidTask, t)
	}

	if err != nil {
		outcome = outcomeFailed
	}
	tasksProcessedTotal.WithLabelValues(string(t.Type()), outcome).Inc()
	taskDuration.WithLabelValues(string(t.Type())).Observe(time.Since(start).Seconds())
	return err
}

func (e *Executor) multiply(ctx context.Context, t *model.MultiplyTask) (string, error) {
	if e.isBaseCase(t.A, t.B) {
		product, err := matrix.Mul(t.A, t.B)
		if err != nil {
			return "", fmt.Errorf("multiply %s: %w", t.ID, err)
		}
		if err := e.coord.ReportResult(ctx, t.ID, product); err != nil {
			return "", fmt.Errorf("report result %s: %w", t.ID, err)
		}
		e.logger.Debug("task multiplied directly", "task_id", t.ID, "shape", product.Shape().String())
		return outcomeDirect, nil
	}

	pairs, err := Operands(t.A, t.B)
	if err != nil {
		return "", fmt.Errorf("decompose %s: %w", t.ID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for slot, pair := range pairs {
		g.Go(func() error {
			if _, err := e.coord.ReturnSubtask(gctx, pair[0], pair[1], t.ID, slot); err != nil {
				return fmt.Errorf("return subtask %d of %s: %w", slot, t.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	e.logger.Debug("task decomposed", "task_id", t.ID, "shape", t.A.Shape().String())
	return outcomeDecomposed, nil
}

func (e *Executor) combine(ctx context.Context, t *model.CombineTask) (string, error) {
	product, err := Combine(t.Products)
	if err != nil {
		return "", fmt.Errorf("combine %s: %w", t.ID, err)
	}
	if err := e.coord.ReportResult(ctx, t.ParentID, product); err != nil {
		return "", fmt.Errorf("report result %s: %w", t.ParentID, err)
	}
	e.logger.Debug("products combined", "task_id", t.ID, "parent_id", t.ParentID, "shape", product.Shape().String())
	return outcomeCombined, nil
}

// isBaseCase reports whether a·b is multiplied directly rather than split.
func (e *Executor) isBaseCase(a, b matrix.Matrix) bool {
	n := a.Rows()
	return n <= e.baseCase || n%2 != 0 || !a.IsSquare() || a.Shape() != b.Shape()
}
