package scheduler

import (
	"time"

	"github.com/rbazzell/distributed-systems-project/internal/model"
)

// Registry holds registered workers in insertion order and hands them out
// round robin. It is not safe for concurrent use; the Scheduler's lock guards it.
type Registry struct {
	workers []model.Worker
	index   map[string]int
	next    int
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register adds a worker or updates the endpoint of an existing one. A
// re-registered worker keeps its position in the rotation. It reports
// whether the worker was new.
func (r *Registry) Register(id, endpoint string) (model.Worker, bool) {
	if i, ok := r.index[id]; ok {
		r.workers[i].Endpoint = endpoint
		return r.workers[i], false
	}
	w := model.Worker{ID: id, Endpoint: endpoint, RegisteredAt: time.Now().UTC()}
	r.index[id] = len(r.workers)
	r.workers = append(r.workers, w)
	return w, true
}

// Next returns the next worker in rotation.
func (r *Registry) Next() (model.Worker, error) {
	if len(r.workers) == 0 {
		return model.Worker{}, model.ErrNoWorkersAvailable
	}
	w := r.workers[r.next%len(r.workers)]
	r.next = (r.next + 1) % len(r.workers)
	return w, nil
}

// Rotation returns every worker, starting with the one Next would return,
// and advances the rotation by one. Callers use it to fail over.
func (r *Registry) Rotation() ([]model.Worker, error) {
	if len(r.workers) == 0 {
		return nil, model.ErrNoWorkersAvailable
	}
	start := r.next % len(r.workers)
	out := make([]model.Worker, 0, len(r.workers))
	for i := range r.workers {
		out = append(out, r.workers[(start+i)%len(r.workers)])
	}
	r.next = (start + 1) % len(r.workers)
	return out, nil
}

// List returns a copy of the registered workers in insertion order.
func (r *Registry) List() []model.Worker {
	out := make([]model.Worker, len(r.workers))
	copy(out, r.workers)
	return out
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	return len(r.workers)
}
