package cmd

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"
	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

func TestParseDims(t *testing.T) {
	tests := []struct {
		in      string
		want    Dims
		wantErr bool
	}{
		{in: "4", want: Dims{4, 4, 4}},
		{in: "3x5", want: Dims{3, 5, 5}},
		{in: "3x4x5", want: Dims{3, 4, 5}},
		{in: "3X4X5", want: Dims{3, 4, 5}},
		{in: "0", wantErr: true},
		{in: "2x-1", wantErr: true},
		{in: "a", wantErr: true},
		{in: "1x2x3x4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDims(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRandomPair(t *testing.T) {
	a, b := RandomPair(rand.New(rand.NewPCG(1, 2)), Dims{N: 3, M: 4, P: 5})

	assert.Equal(t, matrix.Shape{Rows: 3, Cols: 4}, a.Shape())
	assert.Equal(t, matrix.Shape{Rows: 4, Cols: 5}, b.Shape())
	for _, m := range []matrix.Matrix{a, b} {
		for _, row := range m {
			for _, v := range row {
				assert.GreaterOrEqual(t, v, int64(0))
				assert.LessOrEqual(t, v, int64(9))
			}
		}
	}
}

func TestSeededOperandsRepeat(t *testing.T) {
	a1, b1 := RandomPair(newRand(42), Dims{N: 4, M: 4, P: 4})
	a2, b2 := RandomPair(newRand(42), Dims{N: 4, M: 4, P: 4})

	assert.True(t, matrix.Equal(a1, a2))
	assert.True(t, matrix.Equal(b1, b2))
}

// fakeCoordinator answers submissions with the direct product.
func fakeCoordinator(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	results := make(map[string]*model.Result)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		var req transport.SubmitRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		product, err := matrix.Mul(req.MatrixA, req.MatrixB)
		assert.NoError(t, err)
		id := model.NewID()
		mu.Lock()
		results[id] = &model.Result{ID: id, Status: model.StatusCompleted, Matrix: product}
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(transport.TaskAccepted{TaskID: id, Status: "accepted"})
	})
	mux.HandleFunc("GET /v1/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		res, ok := results[r.PathValue("id")]
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(res)
	})
	mux.HandleFunc("GET /v1/workers", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Worker{{ID: "worker1", Endpoint: "http://worker1:5000"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	srv := fakeCoordinator(t)

	out, err := runRoot(t, "--coordinator", srv.URL, "verify", "--size", "2", "--size", "3x4x5", "--seed", "7", "--poll", "1ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2x2 * 2x2 round 1")
	assert.Contains(t, out, "3x4 * 4x5 round 1")
	assert.NotContains(t, out, "MISMATCH")
}

func TestWorkersCommand(t *testing.T) {
	srv := fakeCoordinator(t)

	out, err := runRoot(t, "--coordinator", srv.URL, "workers")
	require.NoError(t, err)
	assert.Contains(t, out, `"worker_id": "worker1"`)
}
