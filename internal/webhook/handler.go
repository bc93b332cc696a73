package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/noterosync/notero/internal/state"
)

// PropertySyncer propagates property edits for a page.
type PropertySyncer interface {
	SyncPageProperties(ctx context.Context, pageID string) error
}

// NoteSyncer reconciles the notes region of a page.
type NoteSyncer interface {
	SyncPage(ctx context.Context, pageID string) error
}

// Server is the webhook intake HTTP server.
type Server struct {
	db         *state.DB
	secret     string
	pool       *Pool
	properties PropertySyncer
	notes      NoteSyncer
	log        zerolog.Logger
}

// NewServer wires the dispatcher. An empty secret disables signature
// verification.
func NewServer(db *state.DB, secret string, pool *Pool, properties PropertySyncer, notes NoteSyncer, log zerolog.Logger) *Server {
	return &Server{
		db:         db,
		secret:     secret,
		pool:       pool,
		properties: properties,
		notes:      notes,
		log:        log,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/webhook/notion", s.handleWebhook)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook admits a delivery: signature gate, verification handshake,
// then per-event dedup and dispatch. The 200 response is written before any
// task runs.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.Error().Err(err).Msg("read webhook body failed")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if sig := r.Header.Get(SignatureHeader); sig != "" && s.secret != "" {
		if !verifySignature(body, sig, s.secret) {
			s.log.Warn().Msg("webhook signature mismatch")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.Error().Err(err).Msg("decode webhook payload failed")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if payload.VerificationToken != "" {
		s.log.Info().Msg("webhook verification handshake")
		writeJSON(w, http.StatusOK, map[string]string{"challenge": payload.VerificationToken})
		return
	}

	for _, event := range payload.Events {
		s.dispatch(event)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// dispatch records one event and enqueues its sync task. Duplicate and
// unroutable events are dropped.
func (s *Server) dispatch(event Event) {
	pageID := event.Data.PageID
	if pageID == "" {
		return
	}

	fresh, err := s.db.RecordEvent(event.ID, pageID)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID).Msg("record event failed")
		return
	}
	if !fresh {
		s.log.Debug().Str("event_id", event.ID).Msg("duplicate event dropped")
		return
	}

	var run func(ctx context.Context) error
	switch event.Type {
	case EventPropertiesUpdated:
		run = func(ctx context.Context) error { return s.properties.SyncPageProperties(ctx, pageID) }
	case EventContentUpdated:
		run = func(ctx context.Context) error { return s.notes.SyncPage(ctx, pageID) }
	default:
		s.log.Debug().Str("event_id", event.ID).Str("type", event.Type).Msg("ignoring event type")
		return
	}

	s.log.Info().Str("event_id", event.ID).Str("page_id", pageID).Str("type", event.Type).Msg("dispatching sync task")
	s.pool.Submit(Task{EventID: event.ID, PageID: pageID, Run: run})
}

// verifySignature compares the hex HMAC-SHA-256 of body against the header
// value in constant time. A "sha256=" prefix is accepted.
func verifySignature(body []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
