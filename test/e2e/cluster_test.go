package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	resultTimeout  = 30 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// proc holds a running subprocess and its output.
type proc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	binDir    string
	buildOnce sync.Once
	buildErr  error
)

// getBinaries builds the coordinator and worker once per test run.
func getBinaries(t *testing.T) (coordinator, worker string) {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "strassen-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		root := findRepoRoot(t)
		for _, name := range []string{"coordinator", "worker"} {
			cmd := exec.Command("go", "build", "-o", filepath.Join(dir, name), "./cmd/"+name)
			cmd.Dir = root
			out, err := cmd.CombinedOutput()
			if err != nil {
				buildErr = fmt.Errorf("go build %s failed: %w\n%s", name, err, out)
				return
			}
		}
		binDir = dir
	})
	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return filepath.Join(binDir, "coordinator"), filepath.Join(binDir, "worker")
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func startProc(t *testing.T, binary string, env ...string) *proc {
	t.Helper()

	addr := freeAddr(t)
	stdout := &lockedBuffer{}
	cmd := exec.Command(binary)
	cmd.Env = append(os.Environ(), "STRASSEN_LISTEN_ADDR="+addr, "STRASSEN_LOG_LEVEL=info")
	cmd.Env = append(cmd.Env, env...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start %s: %v", binary, err)
	}

	p := &proc{cmd: cmd, stdout: stdout, url: "http://" + addr}
	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(p.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return p
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("%s did not become ready within %v\nstdout:\n%s", binary, startupTimeout, stdout.String())
	return nil
}

// startCluster starts a coordinator and n workers and waits until every
// worker has registered.
func startCluster(t *testing.T, n int) *proc {
	t.Helper()
	coordBin, workerBin := getBinaries(t)

	coord := startProc(t, coordBin, "STRASSEN_DB_PATH="+filepath.Join(t.TempDir(), "strassen.db"))
	for i := range n {
		// An empty worker URL is derived from the listen address.
		startProc(t, workerBin,
			"STRASSEN_COORDINATOR_URL="+coord.url,
			fmt.Sprintf("STRASSEN_WORKER_ID=worker%d", i+1),
			"STRASSEN_WORKER_URL=",
			"STRASSEN_BASE_CASE=2",
		)
	}

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		var workers []map[string]any
		if getJSON(t, coord.url+"/v1/workers", &workers) == http.StatusOK && len(workers) == n {
			return coord
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("workers did not register within %v\ncoordinator:\n%s", startupTimeout, coord.stdout.String())
	return nil
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Logf("decode %s: %v", url, err)
	}
	return resp.StatusCode
}

func submit(t *testing.T, url string, a, b [][]int64) (int, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"matrix_a": a, "matrix_b": b})
	resp, err := http.Post(url+"/v1/tasks", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/tasks: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode submit response %q: %v", data, err)
	}
	return resp.StatusCode, out
}

func waitResult(t *testing.T, url, id string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(resultTimeout)
	for time.Now().Before(deadline) {
		var res map[string]any
		if getJSON(t, url+"/v1/results/"+id, &res) == http.StatusOK && res["status"] != "pending" {
			return res
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("result %s not ready within %v", id, resultTimeout)
	return nil
}

func multiply(a, b [][]int64) [][]int64 {
	out := make([][]int64, len(a))
	for i := range a {
		out[i] = make([]int64, len(b[0]))
		for j := range b[0] {
			for k := range b {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

func filled(rows, cols int) [][]int64 {
	m := make([][]int64, rows)
	for i := range m {
		m[i] = make([]int64, cols)
		for j := range m[i] {
			m[i][j] = int64((i*7 + j*3) % 10)
		}
	}
	return m
}

func TestClusterMultipliesTwoByTwo(t *testing.T) {
	coord := startCluster(t, 3)

	status, accepted := submit(t, coord.url, [][]int64{{1, 2}, {3, 4}}, [][]int64{{5, 6}, {7, 8}})
	if status != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %v", status, accepted)
	}
	id, _ := accepted["task_id"].(string)
	if !strings.HasPrefix(id, "multiply_2x2_2x2_") {
		t.Errorf("task_id = %q, want multiply_2x2_2x2_ prefix", id)
	}

	res := waitResult(t, coord.url, id)
	if res["status"] != "completed" {
		t.Fatalf("status = %v, want completed: %v", res["status"], res["error"])
	}
	got, _ := json.Marshal(res["matrix"])
	if string(got) != "[[19,22],[43,50]]" {
		t.Errorf("matrix = %s, want [[19,22],[43,50]]", got)
	}
}

func TestClusterMultipliesPaddedShapes(t *testing.T) {
	coord := startCluster(t, 3)

	a, b := filled(7, 12), filled(12, 5)
	status, accepted := submit(t, coord.url, a, b)
	if status != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %v", status, accepted)
	}

	res := waitResult(t, coord.url, accepted["task_id"].(string))
	if res["status"] != "completed" {
		t.Fatalf("status = %v, want completed: %v", res["status"], res["error"])
	}
	got, _ := json.Marshal(res["matrix"])
	want, _ := json.Marshal(multiply(a, b))
	if string(got) != string(want) {
		t.Errorf("matrix = %s, want %s", got, want)
	}
}

func TestClusterRejectsMismatchedOperands(t *testing.T) {
	coord := startCluster(t, 1)

	status, body := submit(t, coord.url, [][]int64{{1, 2}}, [][]int64{{1, 2}})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if body["error"] == "" {
		t.Error("expected error message")
	}
}

func TestCoordinatorWithoutWorkers(t *testing.T) {
	coordBin, _ := getBinaries(t)
	coord := startProc(t, coordBin, "STRASSEN_DB_PATH="+filepath.Join(t.TempDir(), "strassen.db"))

	status, _ := submit(t, coord.url, [][]int64{{1}}, [][]int64{{1}})
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}
