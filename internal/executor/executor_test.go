package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
)

type subtaskCall struct {
	a, b   matrix.Matrix
	parent string
	slot   int
}

// fakeCoordinator records every callback an executor makes.
type fakeCoordinator struct {
	mu         sync.Mutex
	subtasks   []subtaskCall
	results    map[string]matrix.Matrix
	failures   map[string]string
	subtaskErr error
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		results:  make(map[string]matrix.Matrix),
		failures: make(map[string]string),
	}
}

func (f *fakeCoordinator) ReturnSubtask(_ context.Context, a, b matrix.Matrix, parent string, slot int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subtaskErr != nil && slot == 3 {
		return "", f.subtaskErr
	}
	f.subtasks = append(f.subtasks, subtaskCall{a: a, b: b, parent: parent, slot: slot})
	return model.MultiplyID(a, b), nil
}

func (f *fakeCoordinator) ReportResult(_ context.Context, id string, m matrix.Matrix) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = m
	return nil
}

func (f *fakeCoordinator) ReportFailure(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = reason
	return nil
}

func newTestExecutor(t *testing.T, baseCase int) (*Executor, *fakeCoordinator) {
	t.Helper()
	coord := newFakeCoordinator()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(coord, baseCase, logger), coord
}

func sequential(n int) matrix.Matrix {
	m := matrix.Zeros(n, n)
	v := int64(1)
	for i := range m {
		for j := range m[i] {
			m[i][j] = v
			v++
		}
	}
	return m
}

func TestProcessBaseCase(t *testing.T) {
	ex, coord := newTestExecutor(t, 2)
	task := &model.MultiplyTask{
		ID: "root",
		A:  matrix.Matrix{{1, 2}, {3, 4}},
		B:  matrix.Matrix{{5, 6}, {7, 8}},
	}

	require.NoError(t, ex.Process(context.Background(), task))

	assert.Empty(t, coord.subtasks)
	assert.Equal(t, matrix.Matrix{{19, 22}, {43, 50}}, coord.results["root"])
}

func TestProcessSingleElement(t *testing.T) {
	ex, coord := newTestExecutor(t, 2)
	task := &model.MultiplyTask{ID: "one", A: matrix.Matrix{{3}}, B: matrix.Matrix{{4}}}

	require.NoError(t, ex.Process(context.Background(), task))
	assert.Equal(t, matrix.Matrix{{12}}, coord.results["one"])
}

func TestProcessOddDimensionIsDirect(t *testing.T) {
	ex, coord := newTestExecutor(t, 2)
	a := sequential(3)
	task := &model.MultiplyTask{ID: "odd", A: a, B: a}

	require.NoError(t, ex.Process(context.Background(), task))

	want, err := matrix.Mul(a, a)
	require.NoError(t, err)
	assert.Empty(t, coord.subtasks)
	assert.Equal(t, want, coord.results["odd"])
}

func TestProcessDecomposes(t *testing.T) {
	ex, coord := newTestExecutor(t, 2)
	a, b := sequential(4), sequential(4)
	task := &model.MultiplyTask{ID: "parent", A: a, B: b}

	require.NoError(t, ex.Process(context.Background(), task))

	require.Len(t, coord.subtasks, model.NumProducts)
	assert.Empty(t, coord.results, "a decomposed task reports no product itself")

	sort.Slice(coord.subtasks, func(i, j int) bool { return coord.subtasks[i].slot < coord.subtasks[j].slot })
	var products [model.NumProducts]matrix.Matrix
	for i, call := range coord.subtasks {
		assert.Equal(t, i, call.slot)
		assert.Equal(t, "parent", call.parent)
		assert.Equal(t, matrix.Shape{Rows: 2, Cols: 2}, call.a.Shape())
		p, err := matrix.Mul(call.a, call.b)
		require.NoError(t, err)
		products[i] = p
	}

	got, err := Combine(products)
	require.NoError(t, err)
	want, err := matrix.Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestProcessCombineReportsUnderParent(t *testing.T) {
	ex, coord := newTestExecutor(t, 2)
	a, b := sequential(2), sequential(2)
	pairs, err := Operands(a, b)
	require.NoError(t, err)

	task := &model.CombineTask{ID: model.CombineID("parent"), ParentID: "parent"}
	for i, pair := range pairs {
		task.Products[i], err = matrix.Mul(pair[0], pair[1])
		require.NoError(t, err)
	}

	require.NoError(t, ex.Process(context.Background(), task))

	want, err := matrix.Mul(a, b)
	require.NoError(t, err)
	assert.Equal(t, want, coord.results["parent"])
	assert.NotContains(t, coord.results, task.ID)
}

func TestProcessCombineMismatchedProducts(t *testing.T) {
	ex, _ := newTestExecutor(t, 2)
	task := &model.CombineTask{ID: model.CombineID("p"), ParentID: "p"}
	for i := range task.Products {
		task.Products[i] = matrix.Zeros(1, 1)
	}
	task.Products[5] = matrix.Zeros(2, 2)

	err := ex.Process(context.Background(), task)
	assert.ErrorIs(t, err, matrix.ErrDimension)
}

func TestProcessNilTask(t *testing.T) {
	ex, _ := newTestExecutor(t, 2)
	err := ex.Process(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrInvalidTask)
}

func TestSubmitReportsFailure(t *testing.T) {
	ex, coord := newTestExecutor(t, 1)
	coord.subtaskErr = errors.New("coordinator unreachable")

	ex.Submit(&model.MultiplyTask{ID: "doomed", A: sequential(4), B: sequential(4)})
	ex.Wait()

	require.Contains(t, coord.failures, "doomed")
	assert.Contains(t, coord.failures["doomed"], "coordinator unreachable")
}

func TestSubmitIsAsynchronous(t *testing.T) {
	ex, coord := newTestExecutor(t, 2)
	ex.Submit(&model.MultiplyTask{ID: "bg", A: matrix.Matrix{{2}}, B: matrix.Matrix{{5}}})
	ex.Wait()

	assert.Equal(t, matrix.Matrix{{10}}, coord.results["bg"])
	assert.Empty(t, coord.failures)
}

func TestNewDefaultsBaseCase(t *testing.T) {
	ex := New(newFakeCoordinator(), 0, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	assert.Equal(t, DefaultBaseCaseSize, ex.baseCase)
}

func TestStrassenIdentityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := 1 << rapid.IntRange(1, 4).Draw(t, "log2n")
		gen := rapid.SliceOfN(rapid.Int64Range(-20, 20), n*n, n*n)
		a, b := matrix.Zeros(n, n), matrix.Zeros(n, n)
		av, bv := gen.Draw(t, "a"), gen.Draw(t, "b")
		for i := range n {
			copy(a[i], av[i*n:(i+1)*n])
			copy(b[i], bv[i*n:(i+1)*n])
		}

		pairs, err := Operands(a, b)
		if err != nil {
			t.Fatalf("Operands: %v", err)
		}
		var products [model.NumProducts]matrix.Matrix
		for i, pair := range pairs {
			if products[i], err = matrix.Mul(pair[0], pair[1]); err != nil {
				t.Fatalf("Mul: %v", err)
			}
		}
		got, err := Combine(products)
		if err != nil {
			t.Fatalf("Combine: %v", err)
		}
		want, _ := matrix.Mul(a, b)
		if !matrix.Equal(got, want) {
			t.Fatalf("strassen product = %v, want %v", got, want)
		}
	})
}
