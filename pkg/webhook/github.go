package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	ghhooks "github.com/go-playground/webhooks/v6/github"
	gh "github.com/google/go-github/v57/github"

	"hookfeed/internal"
	"hookfeed/pkg/event"
	"hookfeed/pkg/storage"
)

// DefaultDispatchTimeout bounds the sink call made while the sender waits.
const DefaultDispatchTimeout = 2 * time.Second

// RecordSink receives records after they are stored.
type RecordSink interface {
	Dispatch(ctx context.Context, record event.Record) error
}

// GitHubHandler handles incoming webhooks from GitHub.
type GitHubHandler struct {
	normalizer  *event.Normalizer
	store       storage.EventStore
	sink        RecordSink
	logger      *log.Logger
	maxBody     int64
	debugEvents bool
	newID       func() (string, error)

	dispatchTimeout time.Duration
}

// NewGitHubHandler creates a new GitHubHandler. sink may be nil.
func NewGitHubHandler(store storage.EventStore, normalizer *event.Normalizer, sink RecordSink, logger *log.Logger, maxBody int64, debugEvents bool) *GitHubHandler {
	if normalizer == nil {
		normalizer = event.NewNormalizer(nil)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &GitHubHandler{
		normalizer:  normalizer,
		store:       store,
		sink:        sink,
		logger:      logger,
		maxBody:     maxBody,
		debugEvents: debugEvents,
		newID:       internal.NewRecordID,

		dispatchTimeout: DefaultDispatchTimeout,
	}
}

// SetDispatchTimeout changes how long a request waits on the sink.
// Non-positive values keep the current timeout.
func (h *GitHubHandler) SetDispatchTimeout(timeout time.Duration) {
	if timeout > 0 {
		h.dispatchTimeout = timeout
	}
}

// ServeHTTP handles an incoming HTTP request.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	w.Header().Set("X-Request-Id", reqID)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	logger := internal.WithRequestID(h.logger, reqID)

	eventName := gh.WebHookType(r)
	internal.IncRequest(eventName)

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Printf("github body read failed, treating as empty: %v", err)
		rawBody = nil
	}
	if h.debugEvents {
		logDebugEvent(logger, eventName, rawBody)
	}

	if ghhooks.Event(eventName) == ghhooks.PingEvent {
		writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		return
	}

	record, ok := h.normalizer.Normalize(eventName, event.DecodePayload(rawBody))
	if !ok {
		internal.IncRecord("ignored")
		logger.Printf("github event=%s ignored", eventName)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.persist(r.Context(), &record); err != nil {
		internal.IncStoreError("insert")
		logger.Printf("github event=%s store failed: %v", eventName, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}
	internal.IncRecord(string(record.Action))
	logger.Printf("github event=%s stored id=%s action=%s repo=%s", eventName, record.ID, record.Action, record.Repo)

	h.dispatch(r.Context(), logger, record)
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// dispatch hands the stored record to the sink. Failures are logged only:
// the record is already persisted.
func (h *GitHubHandler) dispatch(ctx context.Context, logger *log.Logger, record event.Record) {
	if h.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.dispatchTimeout)
	defer cancel()
	if err := h.sink.Dispatch(ctx, record); err != nil {
		logger.Printf("github dispatch id=%s failed: %v", record.ID, err)
	}
}

// persist assigns an identity and inserts the record.
func (h *GitHubHandler) persist(ctx context.Context, record *event.Record) error {
	if h.store == nil {
		return storage.ErrNotInitialized
	}
	id, err := h.newID()
	if err != nil {
		return err
	}
	record.ID = id
	return h.store.Insert(ctx, *record)
}

func requestID(r *http.Request) string {
	if id := gh.DeliveryID(r); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return internal.NewRequestID()
}

func logDebugEvent(logger *log.Logger, eventName string, body []byte) {
	if len(body) == 0 {
		logger.Printf("github debug event=%s payload=<empty>", eventName)
		return
	}
	logger.Printf("github debug event=%s payload=%s", eventName, body)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
