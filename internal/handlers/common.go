package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/images"
	"github.com/lehigh-university-libraries/captioner/internal/models"
	"github.com/lehigh-university-libraries/captioner/internal/preview"
	"github.com/lehigh-university-libraries/captioner/internal/storage"
	"github.com/lehigh-university-libraries/captioner/internal/workflow"
)

// Options configure the workflow web handlers
type Options struct {
	Captioner        workflow.Captioner
	TranslationDelay time.Duration
	// SessionTTL closes sessions not fetched for this long; 0 keeps them
	SessionTTL time.Duration
	Fetcher    *images.Fetcher
	Logger     *slog.Logger
}

type Handler struct {
	sessionStore *storage.SessionStore
	previews     *preview.Store
	fetcher      *images.Fetcher
	captioner    workflow.Captioner
	delay        time.Duration
	ttl          time.Duration
	logger       *slog.Logger
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = images.NewFetcher()
	}
	return &Handler{
		sessionStore: storage.New(),
		previews:     preview.NewStore(),
		fetcher:      fetcher,
		captioner:    opts.Captioner,
		delay:        opts.TranslationDelay,
		ttl:          opts.SessionTTL,
		logger:       logger,
	}
}

// Routes returns the mux serving pages, the session API and previews
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.HandleLanding)
	mux.HandleFunc("GET /app", h.HandleApp)
	mux.HandleFunc("GET "+preview.PathPrefix+"{id}", h.HandlePreview)
	mux.HandleFunc("GET /healthcheck", h.HandleHealthcheck)

	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/image", h.HandleSelectImage)
	mux.HandleFunc("POST /api/sessions/{id}/generate", h.HandleGenerate)
	mux.HandleFunc("POST /api/sessions/{id}/translate", h.HandleTranslate)
	return mux
}

// Close ends every session and releases its preview
func (h *Handler) Close() {
	for _, session := range h.sessionStore.List() {
		if s, ok := h.sessionStore.Delete(session.ID); ok {
			s.Controller.Close()
		}
	}
}

// ExpireIdle closes sessions not fetched within the TTL and reports how many
// were closed.
func (h *Handler) ExpireIdle(now time.Time) int {
	if h.ttl <= 0 {
		return 0
	}
	expired := h.sessionStore.Expire(now.Add(-h.ttl))
	for _, session := range expired {
		session.Controller.Close()
		h.logger.Info("Expired idle session", "session_id", session.ID, "last_seen", session.LastSeen())
	}
	return len(expired)
}

// RunExpiry sweeps idle sessions every interval until ctx is done.
func (h *Handler) RunExpiry(ctx context.Context, interval time.Duration) {
	if h.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.ExpireIdle(now)
		}
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	h.logger.Error(message, "status", code)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*storage.Session, bool) {
	session, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) newController(sessionID string) *workflow.Controller {
	return workflow.NewController(workflow.Options{
		Captioner:        h.captioner,
		Previews:         h.previews,
		TranslationDelay: h.delay,
		Logger:           h.logger.With("session_id", sessionID),
	})
}

// view renders the session; drain also hands over pending notices
func (h *Handler) view(session *storage.Session, drain bool) models.SessionView {
	var notices []workflow.Notice
	if drain {
		notices = session.Controller.Notices()
	}
	snapshot := session.Controller.Snapshot()
	view := models.NewSessionView(session.ID, session.CreatedAt, snapshot, notices)
	if view.Image != nil && snapshot.Image != nil {
		if width, height, err := images.Dimensions(snapshot.Image.Data); err == nil {
			view.Image.ImageWidth = width
			view.Image.ImageHeight = height
		}
	}
	return view
}
