package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"triage-chatbot/internal/core"
	"triage-chatbot/internal/session"
	"triage-chatbot/pkg"
	"triage-chatbot/pkg/logging"
)

// Turns processes one chat turn.  Process expects the caller to hold the
// session's turn lock.
type Turns interface {
	Process(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error)
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Sessions      *session.Store
	Turns         Turns
	Logger        *zap.Logger
	Gatherer      prometheus.Gatherer
	TurnTimeout   time.Duration
	MaxImageBytes int

	router chi.Router
}

// NewServer constructs a Server and its routes.  gatherer may be nil to
// disable the metrics endpoint.
func NewServer(sessions *session.Store, turns Turns, logger *zap.Logger, gatherer prometheus.Gatherer, turnTimeout time.Duration, maxImageBytes int) *Server {
	s := &Server{
		Sessions:      sessions,
		Turns:         turns,
		Logger:        logging.OrNop(logger),
		Gatherer:      gatherer,
		TurnTimeout:   turnTimeout,
		MaxImageBytes: maxImageBytes,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleClearSession)
			r.Get("/messages", s.handleConversation)
			r.Post("/messages", s.handlePostMessage)
			r.Post("/chat/reset", s.handleResetChat)
		})
	})
	return r
}

// ServeHTTP dispatches to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleCreateSession opens a new anonymous session and returns its ID.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	s.Sessions.GetOrCreate(id)
	writeJSON(w, http.StatusCreated, pkg.CreateSessionResponse{SessionID: id})
}

// handleClearSession removes the session with its history and context.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	s.Sessions.Clear(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleResetChat drops the chat model handle but keeps the transcript.
func (s *Server) handleResetChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.Sessions.Exists(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.Sessions.ResetChat(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleConversation returns the transcript of a session.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.Sessions.Exists(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s.Sessions.Conversation(id))
}

type postMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// handlePostMessage runs one turn under the session lock.  A failed turn is
// recorded in the transcript as an assistant message before the lock is
// released.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var body postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}
	if body.Image != "" && s.MaxImageBytes > 0 && base64.StdEncoding.DecodedLen(len(body.Image)) > s.MaxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}

	ctx := r.Context()
	if s.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.TurnTimeout)
		defer cancel()
	}

	unlock := s.Sessions.Lock(id)
	defer unlock()

	resp, err := s.Turns.Process(ctx, pkg.TurnRequest{SessionID: id, Text: body.Text, Image: body.Image})
	if err != nil {
		msg := core.ErrorReplyPrefix + err.Error()
		s.Sessions.AddMessage(id, pkg.RoleAssistant, msg)
		s.Logger.Debug("turn error recorded", zap.String("session_id", id))

		status := http.StatusBadGateway
		if errors.Is(err, core.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, pkg.ErrorResponse{Error: msg})
}
