package api

import (
	"log/slog"
	"net/http"

	"github.com/rbazzell/distributed-systems-project/internal/model"
	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

// TaskRunner accepts tasks for asynchronous processing.
type TaskRunner interface {
	Submit(t model.Task)
}

// WorkerServer is a worker's HTTP front end. It acknowledges each task as
// soon as it is decoded and processes it in the background.
type WorkerServer struct {
	base
	runner TaskRunner
}

// NewWorkerServer creates and configures a worker HTTP server.
func NewWorkerServer(addr string, runner TaskRunner, logger *slog.Logger) *WorkerServer {
	srv := &WorkerServer{
		base:   newBase(addr, logger),
		runner: runner,
	}
	srv.router.Post("/v1/process", srv.handleProcess)
	return srv
}

func (s *WorkerServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	var env model.Envelope
	if err := decodeJSON(w, r, &env); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := model.Decode(env)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("task received", "task_id", task.TaskID(), "type", string(task.Type()))
	s.runner.Submit(task)
	s.writeJSON(w, http.StatusAccepted, transport.StatusResponse{Status: "processing"})
}
