package http

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"montaxi/internal/core"
	"montaxi/internal/settings"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks that the record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := s.ledger.ListTaxis(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeSettings(w, r, http.StatusOK)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	if !p.IsJSON() {
		writeError(w, r, core.Invalid("body", "must be a JSON object"))
		return
	}
	next, err := settings.DecodeOver(bytes.NewReader(p.Raw()), s.ledger.Settings())
	if err != nil {
		writeError(w, r, core.Invalid("body", "is not a valid settings document"))
		return
	}
	if err := s.ledger.SaveSettings(next); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSettings(w, r, http.StatusOK)
}

func (s *Server) writeSettings(w http.ResponseWriter, r *http.Request, status int) {
	var buf bytes.Buffer
	if err := settings.Encode(&buf, s.ledger.Settings()); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
