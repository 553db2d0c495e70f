// Package web serves the game to a browser: a small JSON API for player
// commands and a websocket that streams every state change.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tatianab/adventure-engine/internal/engine"
	"github.com/tatianab/adventure-engine/internal/game"
	"github.com/tatianab/adventure-engine/internal/models"
)

// Game is the part of the orchestrator the browser drives.
type Game interface {
	Snapshot() game.Snapshot
	Subscribe(fn func(game.Snapshot)) func()
	BeginGame(ctx context.Context, d models.Difficulty) error
	Choose(ctx context.Context, choice string) error
	Save(ctx context.Context) (bool, error)
	SetNarration(ctx context.Context, on bool) error
	Restart(ctx context.Context) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	game Game
	hub  *Hub
	log  zerolog.Logger

	// turns tracks turns started by requests; they outlive the request.
	turns sync.WaitGroup
}

func NewServer(g Game, log zerolog.Logger) *Server {
	log = log.With().Str("component", "web").Logger()
	return &Server{
		game: g,
		hub:  NewHub(log),
		log:  log,
	}
}

// Handler returns the router for the API and the websocket.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	r.Get("/ws", s.stream)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.state)
		r.Post("/difficulty", s.difficulty)
		r.Post("/choice", s.choice)
		r.Post("/save", s.save)
		r.Post("/restart", s.restart)
		r.Put("/narration", s.narration)
	})
	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	unsubscribe := s.game.Subscribe(s.broadcast)
	defer unsubscribe()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("web bridge listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.turns.Wait()
	return nil
}

func (s *Server) broadcast(snap game.Snapshot) {
	data, err := json.Marshal(newStateView(snap))
	if err != nil {
		s.log.Error().Err(err).Msg("could not encode snapshot")
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateView(s.game.Snapshot()))
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

func (s *Server) difficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := models.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.game.Snapshot().Phase != models.SelectingDifficulty {
		writeError(w, http.StatusConflict, game.ErrWrongPhase)
		return
	}
	s.startTurn(r, func(ctx context.Context) error { return s.game.BeginGame(ctx, d) })
	w.WriteHeader(http.StatusAccepted)
}

type choiceRequest struct {
	Choice string `json:"choice"`
}

func (s *Server) choice(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Choice == engine.RestartChoice {
		s.restart(w, r)
		return
	}

	snap := s.game.Snapshot()
	switch {
	case snap.Phase != models.Playing:
		writeError(w, http.StatusConflict, game.ErrWrongPhase)
		return
	case snap.InFlight:
		writeError(w, http.StatusConflict, game.ErrTurnInFlight)
		return
	case !snap.HasChoice(req.Choice):
		writeError(w, http.StatusBadRequest, game.ErrUnknownChoice)
		return
	}
	s.startTurn(r, func(ctx context.Context) error { return s.game.Choose(ctx, req.Choice) })
	w.WriteHeader(http.StatusAccepted)
}

// startTurn plays a turn in the background. The turn is not tied to the
// request that asked for it.
func (s *Server) startTurn(r *http.Request, fn func(ctx context.Context) error) {
	ctx := context.WithoutCancel(r.Context())
	s.turns.Add(1)
	go func() {
		defer s.turns.Done()
		if err := fn(ctx); err != nil {
			s.log.Warn().Err(err).Msg("turn rejected")
		}
	}()
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	saved, err := s.game.Save(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": saved})
}

func (s *Server) restart(w http.ResponseWriter, r *http.Request) {
	if err := s.game.Restart(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, newStateView(s.game.Snapshot()))
}

type narrationRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) narration(w http.ResponseWriter, r *http.Request) {
	var req narrationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.game.SetNarration(r.Context(), req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	first, err := json.Marshal(newStateView(s.game.Snapshot()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.attach(conn, first)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrWrongPhase), errors.Is(err, game.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, game.ErrUnknownChoice), errors.Is(err, game.ErrUnknownDifficulty):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
