package http

import (
	"net/http"

	"bolso/internal/core"
	"bolso/internal/log"
)

func (s *Server) handleUrgentItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.finance.UrgentItems(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	d, err := s.finance.Dismiss(r.Context(), sanitizeInput(req.ID))
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query(), "limit", 0)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	ns, err := s.finance.Notifications(r.Context(), limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.MarkNotificationRead(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	settings, err := s.finance.WebhookSettings(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	// The secret is write-only.
	settings.Secret = ""
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutWebhook(w http.ResponseWriter, r *http.Request) {
	var req core.WebhookSettings
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.finance.SaveWebhookSettings(r.Context(), req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.finance.Profile(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req core.Profile
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	p, err := s.finance.SaveProfile(r.Context(), req)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
