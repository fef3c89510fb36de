package web

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireToken validates bearer tokens on the JSON API.
// If token is empty, no authentication is required and all requests pass through.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	token := s.cfg.Web.APIToken
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
