package web

import (
	"errors"
	"net/http"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/deps"
	"uploadflow/internal/logging"
	"uploadflow/internal/preflight"
	"uploadflow/internal/services"
	"uploadflow/internal/session"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session")
	if err := session.ValidateID(id); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	sess, err := s.sessions.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	state, err := artifacts.Scan(sess.Dir)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, state.StatusMap())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session")
	err := s.sessions.Delete(r.Context(), id)
	switch {
	case err == nil:
		if current, ok := s.signer.readCookie(r, sessionCookie); ok && current == id {
			clearCookie(w, sessionCookie)
		}
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, "invalid session id")
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrBusy):
		s.writeError(w, http.StatusConflict, "session is busy")
	default:
		logging.WithContext(r.Context(), s.logger).Error("delete session failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type healthResponse struct {
	OK           bool               `json:"ok"`
	Dependencies []deps.Status      `json:"dependencies"`
	Checks       []preflight.Result `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		OK:           true,
		Dependencies: preflight.CheckSystemDeps(s.cfg, false),
		Checks:       preflight.RunAll(s.cfg),
	}
	for _, dep := range resp.Dependencies {
		if !dep.Available && !dep.Optional {
			resp.OK = false
		}
	}
	for _, check := range resp.Checks {
		if !check.Passed {
			resp.OK = false
		}
	}
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}
