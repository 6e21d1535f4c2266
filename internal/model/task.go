package model

import (
	"fmt"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
)

// TaskType is the wire discriminator of a Task.
type TaskType string

// Task type constants.
const (
	TaskMultiply TaskType = "multiply"
	TaskCombine  TaskType = "combine"
)

// Coordinator-side task state constants.
const (
	StateSubmitted  = "submitted"
	StateDispatched = "dispatched"
	StateDecomposed = "decomposed"
	StateCompleted  = "completed"
)

// NumProducts is the number of Strassen sub-products per decomposition.
const NumProducts = 7

// Task is a unit of work sent to a worker. It is a closed set: the only
// implementations are MultiplyTask and CombineTask.
type Task interface {
	TaskID() string
	Type() TaskType
	isTask()
}

// MultiplyTask asks a worker to compute A·B, directly or by decomposing it.
// ParentID is empty for a root task; Slot is meaningful only when it is not.
type MultiplyTask struct {
	ID       string
	ParentID string
	Slot     int
	A        matrix.Matrix
	B        matrix.Matrix
}

func (t *MultiplyTask) TaskID() string { return t.ID }
func (t *MultiplyTask) Type() TaskType { return TaskMultiply }
func (*MultiplyTask) isTask()          {}

// IsRoot reports whether the task was submitted by a client.
func (t *MultiplyTask) IsRoot() bool { return t.ParentID == "" }

// CombineTask asks a worker to assemble ParentID's product from its seven
// Strassen sub-products.
type CombineTask struct {
	ID       string
	ParentID string
	Products [NumProducts]matrix.Matrix
}

func (t *CombineTask) TaskID() string { return t.ID }
func (t *CombineTask) Type() TaskType { return TaskCombine }
func (*CombineTask) isTask()          {}

// Envelope is the JSON form of a Task on the wire.
type Envelope struct {
	TaskID         string          `json:"task_id"`
	TaskType       TaskType        `json:"task_type"`
	ParentID       *string         `json:"parent_id"`
	SlotIndex      *int            `json:"slot_index"`
	Matrices       []matrix.Matrix `json:"matrices,omitempty"`
	SubtaskResults []matrix.Matrix `json:"subtask_results,omitempty"`
}

// Encode converts t to its wire form.
func Encode(t Task) Envelope {
	switch t := t.(type) {
	case *MultiplyTask:
		env := Envelope{
			TaskID:   t.ID,
			TaskType: TaskMultiply,
			Matrices: []matrix.Matrix{t.A, t.B},
		}
		if !t.IsRoot() {
			parent, slot := t.ParentID, t.Slot
			env.ParentID = &parent
			env.SlotIndex = &slot
		}
		return env
	case *CombineTask:
		parent := t.ParentID
		return Envelope{
			TaskID:         t.ID,
			TaskType:       TaskCombine,
			ParentID:       &parent,
			SubtaskResults: t.Products[:],
		}
	default:
		panic(fmt.Sprintf("model: unknown task variant %T", t))
	}
}

// Decode validates an envelope and converts it back to a Task.
func Decode(env Envelope) (Task, error) {
	if env.TaskID == "" {
		return nil, fmt.Errorf("%w: missing task_id", ErrInvalidTask)
	}
	switch env.TaskType {
	case TaskMultiply:
		return decodeMultiply(env)
	case TaskCombine:
		return decodeCombine(env)
	default:
		return nil, fmt.Errorf("%w: unknown task_type %q", ErrInvalidTask, env.TaskType)
	}
}

func decodeMultiply(env Envelope) (Task, error) {
	if len(env.Matrices) != 2 || env.SubtaskResults != nil {
		return nil, fmt.Errorf("%w: multiply task needs exactly 2 matrices", ErrInvalidTask)
	}
	a, b := env.Matrices[0], env.Matrices[1]
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: matrix a: %w", ErrInvalidTask, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: matrix b: %w", ErrInvalidTask, err)
	}
	if a.Cols() != b.Rows() {
		return nil, fmt.Errorf("%w: %w: cannot multiply %s by %s", ErrInvalidTask, matrix.ErrDimension, a.Shape(), b.Shape())
	}

	t := &MultiplyTask{ID: env.TaskID, A: a, B: b}
	if env.ParentID != nil && *env.ParentID != "" {
		if env.SlotIndex == nil {
			return nil, fmt.Errorf("%w: subtask without slot_index", ErrInvalidTask)
		}
		if *env.SlotIndex < 0 || *env.SlotIndex >= NumProducts {
			return nil, fmt.Errorf("%w: %w: %d", ErrInvalidTask, ErrInvalidSlot, *env.SlotIndex)
		}
		t.ParentID = *env.ParentID
		t.Slot = *env.SlotIndex
	}
	return t, nil
}

func decodeCombine(env Envelope) (Task, error) {
	if len(env.SubtaskResults) != NumProducts || env.Matrices != nil {
		return nil, fmt.Errorf("%w: combine task needs exactly %d subtask results", ErrInvalidTask, NumProducts)
	}
	if env.ParentID == nil || *env.ParentID == "" {
		return nil, fmt.Errorf("%w: combine task without parent_id", ErrInvalidTask)
	}
	t := &CombineTask{ID: env.TaskID, ParentID: *env.ParentID}
	shape := env.SubtaskResults[0].Shape()
	for i, m := range env.SubtaskResults {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%w: subtask result %d: %w", ErrInvalidTask, i, err)
		}
		if m.Shape() != shape || !m.IsSquare() {
			return nil, fmt.Errorf("%w: %w: subtask result %d is %s, want %s", ErrInvalidTask, matrix.ErrDimension, i, m.Shape(), shape)
		}
		t.Products[i] = m
	}
	return t, nil
}
