package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"hookfeed/pkg/event"
	"hookfeed/pkg/storage"
)

// EventView is the display projection of a stored record.
type EventView struct {
	ID                 string  `json:"id"`
	Action             string  `json:"action"`
	Author             string  `json:"author"`
	ToBranch           string  `json:"to_branch"`
	FromBranch         *string `json:"from_branch"`
	Repo               string  `json:"repo"`
	Timestamp          *string `json:"timestamp"`
	TimestampFormatted string  `json:"timestamp_formatted"`
	CreatedAt          string  `json:"created_at"`
}

// Project converts records to views, preserving order.
func Project(records []event.Record, clock event.Clock) []EventView {
	views := make([]EventView, 0, len(records))
	for _, record := range records {
		view := EventView{
			ID:         record.ID,
			Action:     string(record.Action),
			Author:     record.Author,
			ToBranch:   record.ToBranch,
			FromBranch: record.FromBranch,
			Repo:       record.Repo,
			CreatedAt:  formatInstant(record.CreatedAt),
		}
		if !record.Timestamp.IsZero() {
			ts := formatInstant(record.Timestamp)
			view.Timestamp = &ts
			view.TimestampFormatted = clock.FormatTimestamp(record.Timestamp)
		}
		views = append(views, view)
	}
	return views
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// EventsHandler serves the most recent records, newest first.
type EventsHandler struct {
	Store  storage.EventStore
	Limit  int
	Clock  event.Clock
	Logger *log.Logger
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Store == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}
	records, err := h.Store.ListRecent(r.Context(), storage.Limit(h.Limit))
	if err != nil {
		http.Error(w, "list events failed", http.StatusInternalServerError)
		if h.Logger != nil {
			h.Logger.Printf("list events failed: %v", err)
		}
		return
	}

	writeJSON(w, Project(records, h.Clock))
}

// HealthHandler reports liveness.
type HealthHandler struct{}

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
