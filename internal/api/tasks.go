package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rbazzell/distributed-systems-project/internal/model"
	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req transport.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MatrixA == nil || req.MatrixB == nil {
		s.writeError(w, http.StatusBadRequest, "matrix_a and matrix_b are required")
		return
	}

	id, err := s.scheduler.Submit(r.Context(), req.MatrixA, req.MatrixB)
	if err != nil {
		s.writeTaskError(w, "submit task", err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, transport.TaskAccepted{TaskID: id, Status: "accepted"})
}

func (s *Server) handleReturnSubtask(w http.ResponseWriter, r *http.Request) {
	parent := chi.URLParam(r, "id")

	var req transport.SubtaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MatrixA == nil || req.MatrixB == nil || req.SlotIndex == nil {
		s.writeError(w, http.StatusBadRequest, "matrix_a, matrix_b and slot_index are required")
		return
	}

	id, err := s.scheduler.ReturnSubtask(r.Context(), req.MatrixA, req.MatrixB, parent, *req.SlotIndex)
	if err != nil {
		s.writeTaskError(w, "return subtask", err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, transport.TaskAccepted{TaskID: id, Status: "accepted"})
}

func (s *Server) handleReceiveResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transport.ResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Result == nil {
		s.writeError(w, http.StatusBadRequest, "result is required")
		return
	}

	if err := s.scheduler.ReceiveResult(r.Context(), id, req.Result); err != nil {
		s.writeTaskError(w, "receive result", err)
		return
	}

	s.writeJSON(w, http.StatusOK, transport.StatusResponse{Status: "received"})
}

func (s *Server) handleReportFailure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transport.FailureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Error == "" {
		req.Error = "worker reported failure"
	}

	if err := s.scheduler.ReportFailure(r.Context(), id, req.Error); err != nil {
		s.writeTaskError(w, "report failure", err)
		return
	}

	s.writeJSON(w, http.StatusOK, transport.StatusResponse{Status: model.StatusFailed})
}

// writeTaskError logs unexpected scheduler errors and writes the mapped status.
func (s *Server) writeTaskError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op, "error", err)
	}
	s.writeError(w, status, err.Error())
}
