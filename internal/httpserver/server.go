// internal/httpserver/server.go
//
// HTTP server wiring for the prime-or-not backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", POST /session.
//   - Session endpoints (token required): state, answer, dismiss, reset,
//     end, history, and the WebSocket snapshot stream.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The WebSocket route is mounted outside the handler timeout.
//   - Every game intent answers with the snapshot that resulted from it.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/primegame/internal/config"
	"github.com/robalobadob/primegame/internal/game"
	"github.com/robalobadob/primegame/internal/history"
	"github.com/robalobadob/primegame/internal/scheduler"
	"github.com/robalobadob/primegame/internal/session"
	"github.com/robalobadob/primegame/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Deps are the collaborators a Server needs. Recorder may be nil, in which
// case history endpoints return empty results.
type Deps struct {
	Config    config.Config
	Store     store.Store
	Scheduler scheduler.Scheduler
	Recorder  *history.Recorder
	Now       func() time.Time
}

// Server bundles router, session registry and history.
type Server struct {
	r     *chi.Mux
	cfg   config.Config
	store store.Store
	sched scheduler.Scheduler
	rec   *history.Recorder
	now   func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:     chi.NewRouter(),
		cfg:   d.Config,
		store: d.Store,
		sched: d.Scheduler,
		rec:   d.Recorder,
		now:   d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"prime-go","endpoints":["/health","POST /session","GET /session","POST /session/answer","POST /session/dismiss","POST /session/reset","DELETE /session","GET /session/history","GET /session/ws"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.store.Len()})
	})

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Post("/session", s.handleStart)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession())
			r.Get("/session", s.handleState)
			r.Post("/session/answer", s.handleAnswer)
			r.Post("/session/dismiss", s.handleDismiss)
			r.Post("/session/reset", s.handleReset)
			r.Delete("/session", s.handleEnd)
			r.Get("/session/history", s.handleHistory)
		})
	})

	// Long-lived; no handler timeout.
	s.r.With(s.requireSession()).Get("/session/ws", s.handleWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Router exposes the internal router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ SESSION ------------------------------------

// startRes is returned by POST /session.
type startRes struct {
	SessionID string        `json:"sessionId"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	State     game.Snapshot `json:"state"`
}

// handleStart creates a session, schedules its timers and hands out a token.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	opts := session.Options{
		ID: uuid.NewString(),
		Engine: game.Options{
			Min:            s.cfg.NumberMin,
			Max:            s.cfg.NumberMax,
			MilestoneEvery: s.cfg.MilestoneEvery,
		},
		Scheduler: s.sched,
		Rotation:  s.cfg.Rotation,
		Clock:     s.cfg.Clock,
		Now:       s.now,
	}
	if s.rec != nil {
		opts.Recorder = s.rec
	}

	tok, exp, err := s.signToken(opts.ID)
	if err != nil {
		log.Error().Err(err).Msg("sign token")
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	sess := session.Start(opts)
	if err := s.store.Save(r.Context(), sess); err != nil {
		sess.Close(context.Background())
		log.Error().Err(err).Msg("save session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, tok, exp)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(startRes{
		SessionID: sess.ID,
		Token:     tok,
		ExpiresAt: exp.UTC(),
		State:     sess.Engine.Snapshot(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(sessionFrom(r).Engine.Snapshot())
}

// answerReq is the payload for POST /session/answer.
type answerReq struct {
	Prime *bool `json:"prime"`
}

// handleAnswer scores a classification. A locked round answers 200 with
// the unchanged snapshot.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.Prime == nil {
		http.Error(w, `{"error":"missing_prime"}`, http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(sessionFrom(r).Engine.SubmitAnswer(*req.Prime))
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(sessionFrom(r).Engine.DismissDialog())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(sessionFrom(r).Engine.Reset())
}

// handleEnd closes the session and clears the cookie.
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	final := sess.Engine.Snapshot()
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("delete session")
	}
	s.clearSessionCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "final": final})
}

// historyRes is returned by GET /session/history.
type historyRes struct {
	Summary    history.Summary     `json:"summary"`
	Rounds     []history.Round     `json:"rounds"`
	Milestones []history.Milestone `json:"milestones"`
}

// handleHistory returns the session's retired rounds, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"bad_limit"}`, http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	res := historyRes{Rounds: []history.Round{}, Milestones: []history.Milestone{}}
	if s.rec == nil {
		_ = json.NewEncoder(w).Encode(res)
		return
	}

	ctx := r.Context()
	sid := sessionFrom(r).ID
	if err := s.rec.Flush(ctx); err != nil {
		http.Error(w, `{"error":"timeout"}`, http.StatusServiceUnavailable)
		return
	}
	st := s.rec.Store()
	var err error
	if res.Summary, err = st.Summary(ctx, sid); err == nil {
		if res.Rounds, err = st.Rounds(ctx, sid, limit); err == nil {
			res.Milestones, err = st.Milestones(ctx, sid)
		}
	}
	if err != nil {
		log.Error().Err(err).Str("session", sid).Msg("read history")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(res)
}
