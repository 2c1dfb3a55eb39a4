package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mehdichamani/HikStatus/internal/data"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := h.Repo.ListCameras(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cameras == nil {
		cameras = []data.CameraRecord{}
	}
	respondJSON(w, http.StatusOK, cameras)
}

func (h *Handler) ListDownCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := h.Repo.ListNotOnline(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cameras == nil {
		cameras = []data.CameraRecord{}
	}
	respondJSON(w, http.StatusOK, cameras)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	f := data.EventFilter{
		Kind:     data.EventKind(r.URL.Query().Get("kind")),
		Severity: data.Severity(r.URL.Query().Get("severity")),
		Limit:    queryInt(r, "limit", 100),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		f.Since = &t
	}

	events, err := h.Repo.ListEvents(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []data.AlertLogEntry{}
	}
	respondJSON(w, http.StatusOK, events)
}

func (h *Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.Repo.ListChecks(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if checks == nil {
		checks = []data.CheckRecord{}
	}
	respondJSON(w, http.StatusOK, checks)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
