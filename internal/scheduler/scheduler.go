package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
	"github.com/rbazzell/distributed-systems-project/internal/store"
)

// Dispatcher delivers a task to the worker listening at endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, endpoint string, t model.Task) error
}

type taskRecord struct {
	task     model.Task
	state    string
	rootID   string
	workerID string
	// combined is set once the combine for this task has been created, so
	// late sub-products can no longer start a second one.
	combined bool
}

type clientRecord struct {
	shapeA    matrix.Shape
	shapeB    matrix.Shape
	submitted time.Time
}

// Snapshot is a point-in-time view of scheduler state.
type Snapshot struct {
	ActiveTasks    int            `json:"active_tasks"`
	TasksByState   map[string]int `json:"tasks_by_state"`
	PendingParents int            `json:"pending_parents"`
	ClientTasks    int            `json:"client_tasks"`
	Workers        int            `json:"workers"`
}

// Scheduler tracks every in-flight task and routes work between workers.
type Scheduler struct {
	mu       sync.Mutex
	registry *Registry
	tracker  *Tracker
	tasks    map[string]*taskRecord
	clients  map[string]*clientRecord

	dispatcher Dispatcher
	store      store.Store
	broker     *EventBroker
	logger     *slog.Logger
}

// New creates a scheduler that sends tasks through d and records final
// results in s.
func New(d Dispatcher, s store.Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		registry:   NewRegistry(),
		tracker:    NewTracker(),
		tasks:      make(map[string]*taskRecord),
		clients:    make(map[string]*clientRecord),
		dispatcher: d,
		store:      s,
		broker:     NewEventBroker(),
		logger:     logger,
	}
}

// Events returns the broker carrying per-submission progress events.
func (s *Scheduler) Events() *EventBroker {
	return s.broker
}

// RegisterWorker adds or updates a worker.
func (s *Scheduler) RegisterWorker(_ context.Context, id, endpoint string) model.Worker {
	s.mu.Lock()
	w, added := s.registry.Register(id, endpoint)
	total := s.registry.Len()
	s.mu.Unlock()

	if added {
		s.logger.Info("worker registered", "worker_id", id, "endpoint", endpoint, "workers", total)
	} else {
		s.logger.Info("worker re-registered", "worker_id", id, "endpoint", endpoint)
	}
	return w
}

// Workers returns the registered workers in rotation order.
func (s *Scheduler) Workers() []model.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.List()
}

// Submit starts a client multiplication of a by b and returns the root task
// id under which the result will be stored.
func (s *Scheduler) Submit(ctx context.Context, a, b matrix.Matrix) (string, error) {
	if err := checkOperands(a, b); err != nil {
		return "", err
	}
	pa, pb, shapeA, shapeB := matrix.Pad(a, b)
	task := &model.MultiplyTask{ID: model.MultiplyID(pa, pb), A: pa, B: pb}
	now := time.Now().UTC()

	s.mu.Lock()
	w, err := s.registry.Next()
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("submit task: %w", err)
	}
	s.tasks[task.ID] = &taskRecord{task: task, state: model.StateSubmitted, rootID: task.ID, workerID: w.ID}
	s.clients[task.ID] = &clientRecord{shapeA: shapeA, shapeB: shapeB, submitted: now}
	s.observe()
	s.mu.Unlock()

	if err := s.store.CreateResult(ctx, &model.Result{
		ID:        task.ID,
		Status:    model.StatusPending,
		ShapeA:    shapeA,
		ShapeB:    shapeB,
		CreatedAt: now,
	}); err != nil {
		s.rollback(task.ID, true)
		return "", fmt.Errorf("create result: %w", err)
	}
	s.broker.Publish(task.ID, Event{Type: EventSubmitted, TaskID: task.ID})

	if err := s.dispatcher.Dispatch(ctx, w.Endpoint, task); err != nil {
		dispatchFailuresTotal.WithLabelValues(string(model.TaskMultiply)).Inc()
		s.logger.Error("dispatch root task failed", "task_id", task.ID, "worker_id", w.ID, "error", err)
		s.rollback(task.ID, true)
		s.finishFailed(context.WithoutCancel(ctx), task.ID, now, fmt.Sprintf("dispatch to %s: %v", w.ID, err))
		return "", fmt.Errorf("dispatch task %s: %w: %w", task.ID, model.ErrDispatchFailure, err)
	}
	s.markDispatched(task.ID)
	tasksDispatchedTotal.WithLabelValues(string(model.TaskMultiply)).Inc()
	s.broker.Publish(task.ID, Event{Type: EventDispatched, TaskID: task.ID, Message: w.ID})

	s.logger.Info("task submitted",
		"task_id", task.ID, "worker_id", w.ID,
		"shape_a", shapeA.String(), "shape_b", shapeB.String(), "padded", pa.Shape().String())
	return task.ID, nil
}

// ReturnSubtask registers one of the seven sub-products of parent and
// dispatches it to the next worker.
func (s *Scheduler) ReturnSubtask(ctx context.Context, a, b matrix.Matrix, parent string, slot int) (string, error) {
	if slot < 0 || slot >= model.NumProducts {
		return "", fmt.Errorf("return subtask %d of %s: %w", slot, parent, model.ErrInvalidSlot)
	}
	if err := checkOperands(a, b); err != nil {
		return "", err
	}
	task := &model.MultiplyTask{ID: model.MultiplyID(a, b), ParentID: parent, Slot: slot, A: a, B: b}

	s.mu.Lock()
	prec, ok := s.tasks[parent]
	if !ok || prec.combined || prec.task.Type() != model.TaskMultiply {
		s.mu.Unlock()
		return "", fmt.Errorf("return subtask of %s: %w", parent, model.ErrUnknownTask)
	}
	w, err := s.registry.Next()
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("return subtask of %s: %w", parent, err)
	}
	firstSplit := prec.state != model.StateDecomposed
	prec.state = model.StateDecomposed
	s.tracker.Begin(parent)
	rootID := prec.rootID
	s.tasks[task.ID] = &taskRecord{task: task, state: model.StateSubmitted, rootID: rootID, workerID: w.ID}
	s.observe()
	s.mu.Unlock()

	if firstSplit {
		s.broker.Publish(rootID, Event{Type: EventDecomposed, TaskID: parent})
	}

	if err := s.dispatcher.Dispatch(ctx, w.Endpoint, task); err != nil {
		dispatchFailuresTotal.WithLabelValues(string(model.TaskMultiply)).Inc()
		s.logger.Error("dispatch subtask failed",
			"task_id", task.ID, "parent_id", parent, "slot", slot, "worker_id", w.ID, "error", err)
		s.rollback(task.ID, false)
		return "", fmt.Errorf("dispatch subtask %s: %w: %w", task.ID, model.ErrDispatchFailure, err)
	}
	s.markDispatched(task.ID)
	tasksDispatchedTotal.WithLabelValues(string(model.TaskMultiply)).Inc()

	s.logger.Debug("subtask dispatched", "task_id", task.ID, "parent_id", parent, "slot", slot, "worker_id", w.ID)
	return task.ID, nil
}

// ReceiveResult accepts the product computed for task id. A sub-product is
// recorded against its parent; the seventh distinct one triggers the parent's
// combine. A root product is trimmed to the client's shape and stored.
func (s *Scheduler) ReceiveResult(ctx context.Context, id string, m matrix.Matrix) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("receive result %s: %w", id, err)
	}
	// The follow-up work belongs to the submission, not to the reporting request.
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	var mt *model.MultiplyTask
	rec, ok := s.tasks[id]
	if ok {
		// Combine products are reported under the parent's id, never their own.
		mt, ok = rec.task.(*model.MultiplyTask)
	}
	if !ok {
		s.mu.Unlock()
		resultsReceivedTotal.WithLabelValues(outcomeUnknown).Inc()
		s.logger.Warn("result for unknown task", "task_id", id)
		return fmt.Errorf("receive result %s: %w", id, model.ErrUnknownTask)
	}
	delete(s.tasks, id)
	delete(s.tasks, model.CombineID(id))

	if mt.IsRoot() {
		client := s.clients[id]
		delete(s.clients, id)
		s.observe()
		s.mu.Unlock()

		resultsReceivedTotal.WithLabelValues(outcomeAccepted).Inc()
		return s.deliver(ctx, id, m, client)
	}

	parent := mt.ParentID
	prec, ok := s.tasks[parent]
	if !ok || prec.combined {
		s.observe()
		s.mu.Unlock()
		resultsReceivedTotal.WithLabelValues(outcomeDuplicate).Inc()
		s.logger.Warn("late sub-product dropped", "task_id", id, "parent_id", parent, "slot", mt.Slot)
		return nil
	}
	duplicate, err := s.tracker.Record(parent, mt.Slot, m)
	if err != nil {
		s.observe()
		s.mu.Unlock()
		return fmt.Errorf("receive result %s: %w", id, err)
	}

	var combine *model.CombineTask
	var candidates []model.Worker
	if s.tracker.IsComplete(parent) {
		products, err := s.tracker.Drain(parent)
		if err != nil {
			s.observe()
			s.mu.Unlock()
			return fmt.Errorf("receive result %s: %w", id, err)
		}
		combine = &model.CombineTask{ID: model.CombineID(parent), ParentID: parent, Products: products}
		prec.combined = true
		candidates, _ = s.registry.Rotation()
		s.tasks[combine.ID] = &taskRecord{task: combine, state: model.StateSubmitted, rootID: rec.rootID}
	}
	rootID := rec.rootID
	s.observe()
	s.mu.Unlock()

	if duplicate {
		resultsReceivedTotal.WithLabelValues(outcomeDuplicate).Inc()
		s.logger.Warn("sub-product slot overwritten",
			"task_id", id, "parent_id", parent, "slot", mt.Slot, "error", model.ErrDuplicateSlot)
	} else {
		resultsReceivedTotal.WithLabelValues(outcomeAccepted).Inc()
	}

	if combine != nil {
		combinesCreatedTotal.Inc()
		s.broker.Publish(rootID, Event{Type: EventCombining, TaskID: parent})
		s.dispatchCombine(ctx, combine, candidates, rootID)
	}
	return nil
}

// dispatchCombine tries each candidate in turn. When none accepts the
// combine, the whole submission fails.
func (s *Scheduler) dispatchCombine(ctx context.Context, task *model.CombineTask, candidates []model.Worker, rootID string) {
	var errs []error
	for _, w := range candidates {
		err := s.dispatcher.Dispatch(ctx, w.Endpoint, task)
		if err == nil {
			s.mu.Lock()
			if rec, ok := s.tasks[task.ID]; ok {
				rec.workerID = w.ID
			}
			s.mu.Unlock()
			s.markDispatched(task.ID)
			tasksDispatchedTotal.WithLabelValues(string(model.TaskCombine)).Inc()
			s.logger.Debug("combine dispatched", "task_id", task.ID, "parent_id", task.ParentID, "worker_id", w.ID)
			return
		}
		dispatchFailuresTotal.WithLabelValues(string(model.TaskCombine)).Inc()
		s.logger.Warn("dispatch combine failed, trying next worker",
			"task_id", task.ID, "worker_id", w.ID, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", w.ID, err))
	}
	if len(candidates) == 0 {
		errs = append(errs, model.ErrNoWorkersAvailable)
	}

	reason := fmt.Errorf("dispatch combine %s: %w: %w", task.ID, model.ErrDispatchFailure, errors.Join(errs...))
	s.logger.Error("combine could not be dispatched", "task_id", task.ID, "root_id", rootID, "error", reason)
	s.failRoot(ctx, rootID, reason.Error())
}

// deliver trims a root product and stores it as the final result.
func (s *Scheduler) deliver(ctx context.Context, id string, m matrix.Matrix, client *clientRecord) error {
	if client == nil {
		s.logger.Error("root result without client record", "task_id", id)
		return fmt.Errorf("deliver %s: %w", id, model.ErrUnknownTask)
	}
	product, err := matrix.Unpad(m, client.shapeA, client.shapeB)
	if err != nil {
		s.finishFailed(ctx, id, client.submitted, err.Error())
		return fmt.Errorf("deliver %s: %w", id, err)
	}

	elapsed := time.Since(client.submitted)
	if err := s.store.CompleteResult(ctx, id, product, int(elapsed.Milliseconds())); err != nil {
		s.logger.Error("failed to store result", "task_id", id, "error", err)
		return fmt.Errorf("deliver %s: %w", id, err)
	}
	rootsFinishedTotal.WithLabelValues(model.StatusCompleted).Inc()
	rootDuration.Observe(elapsed.Seconds())

	s.broker.Publish(id, Event{Type: EventCompleted, TaskID: id})
	s.broker.Close(id)
	s.logger.Info("task completed", "task_id", id, "shape", product.Shape().String(), "duration_ms", elapsed.Milliseconds())
	return nil
}

// ReportFailure fails the submission that task id belongs to.
func (s *Scheduler) ReportFailure(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	rec, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("report failure %s: %w", id, model.ErrUnknownTask)
	}
	rootID := rec.rootID
	s.mu.Unlock()

	s.logger.Warn("task failure reported", "task_id", id, "root_id", rootID, "reason", reason)
	s.failRoot(context.WithoutCancel(ctx), rootID, fmt.Sprintf("task %s: %s", id, reason))
	return nil
}

// failRoot purges every record of a submission and marks its result failed.
func (s *Scheduler) failRoot(ctx context.Context, rootID, reason string) {
	s.mu.Lock()
	purged := 0
	for id, rec := range s.tasks {
		if rec.rootID == rootID {
			delete(s.tasks, id)
			s.tracker.Discard(id)
			purged++
		}
	}
	submitted := time.Now()
	if client, ok := s.clients[rootID]; ok {
		submitted = client.submitted
		delete(s.clients, rootID)
	}
	s.observe()
	s.mu.Unlock()

	s.logger.Error("task failed", "task_id", rootID, "purged", purged, "error", reason)
	s.finishFailed(ctx, rootID, submitted, reason)
}

// finishFailed marks the stored result failed and closes its event stream.
func (s *Scheduler) finishFailed(ctx context.Context, rootID string, submitted time.Time, reason string) {
	if err := s.store.FailResult(ctx, rootID, reason, int(time.Since(submitted).Milliseconds())); err != nil {
		s.logger.Error("failed to update failed result", "task_id", rootID, "error", err)
	} else {
		rootsFinishedTotal.WithLabelValues(model.StatusFailed).Inc()
	}
	s.broker.Publish(rootID, Event{Type: EventFailed, TaskID: rootID, Message: reason})
	s.broker.Close(rootID)
}

// Snapshot returns counts of the scheduler's current state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ActiveTasks:    len(s.tasks),
		TasksByState:   make(map[string]int),
		PendingParents: s.tracker.Len(),
		ClientTasks:    len(s.clients),
		Workers:        s.registry.Len(),
	}
	for _, rec := range s.tasks {
		snap.TasksByState[rec.state]++
	}
	return snap
}

// rollback removes a task that never reached its worker.
func (s *Scheduler) rollback(id string, root bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	if root {
		delete(s.clients, id)
	}
	s.observe()
}

// markDispatched advances a task to dispatched unless the worker has
// already moved it further along.
func (s *Scheduler) markDispatched(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.tasks[id]; ok && rec.state == model.StateSubmitted {
		rec.state = model.StateDispatched
	}
}

// observe refreshes the state gauges. Callers must hold s.mu.
func (s *Scheduler) observe() {
	activeTasks.Set(float64(len(s.tasks)))
	pendingParents.Set(float64(s.tracker.Len()))
}

func checkOperands(a, b matrix.Matrix) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("matrix a: %w", err)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("matrix b: %w", err)
	}
	if a.Cols() != b.Rows() {
		return fmt.Errorf("%w: cannot multiply %s by %s", matrix.ErrDimension, a.Shape(), b.Shape())
	}
	return nil
}
