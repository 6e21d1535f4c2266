package api

import (
	"net/http"
	"net/url"

	"github.com/rbazzell/distributed-systems-project/internal/transport"
)

func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req transport.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.WorkerID == "" {
		s.writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}
	if u, err := url.Parse(req.WorkerURL); err != nil || u.Scheme == "" || u.Host == "" {
		s.writeError(w, http.StatusBadRequest, "worker_url must be an absolute URL")
		return
	}

	s.scheduler.RegisterWorker(r.Context(), req.WorkerID, req.WorkerURL)
	s.writeJSON(w, http.StatusOK, transport.StatusResponse{Status: "registered"})
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.scheduler.Workers())
}
