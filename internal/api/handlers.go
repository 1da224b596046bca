package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/levelup/internal/games"
	"github.com/MJE43/levelup/internal/progression"
)

// maxBodyBytes bounds command bodies; code answers are the largest input.
const maxBodyBytes = 64 << 10

type command func(e *progression.Engine, req CommandRequest) error

var commands = map[string]command{
	"start":    func(e *progression.Engine, _ CommandRequest) error { return e.StartGame() },
	"begin":    func(e *progression.Engine, _ CommandRequest) error { return e.Begin() },
	"submit":   func(e *progression.Engine, req CommandRequest) error { return e.SubmitAnswer(req.Answer) },
	"continue": func(e *progression.Engine, _ CommandRequest) error { return e.Continue() },
	"retry":    func(e *progression.Engine, _ CommandRequest) error { return e.Retry() },
	"advance":  func(e *progression.Engine, _ CommandRequest) error { return e.AdvanceLevel() },
	"menu":     func(e *progression.Engine, _ CommandRequest) error { return e.ReturnToMenu() },
	"hint": func(e *progression.Engine, req CommandRequest) error {
		if req.Index == nil {
			return e.RevealNextHint()
		}
		return e.RevealHint(*req.Index)
	},
}

// handleHealth reports liveness, build info and the session screen
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        time.Since(s.startTime).String(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	if eng, game, err := s.Session(); err == nil {
		resp.Game = game.ID
		resp.Screen = string(eng.State().Screen)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleVersion returns the build information
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

// handleListGames returns the registered games
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{
		Games:         games.ListGames(),
		EngineVersion: EngineVersion,
	})
}

// handleCreateSession loads a game, discarding any run in progress
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, ErrTypeInvalidBody, "body", err.Error())
		return
	}
	if req.Game == "" {
		s.errorHandler.HandleValidationError(w, r, ErrTypeValidation, "game", "game is required")
		return
	}
	if err := s.LoadGame(req.Game); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusCreated)
}

// handleState returns the current snapshot
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, r, http.StatusOK)
}

// handleCommand runs one engine command and returns the resulting snapshot
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	cmd, ok := commands[name]
	if !ok {
		s.errorHandler.HandleValidationError(w, r, ErrTypeUnknownCommand, "command", "unknown command "+name)
		return
	}

	var req CommandRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, ErrTypeInvalidBody, "body", err.Error())
		return
	}

	eng, _, err := s.Session()
	if err != nil {
		s.noSession(w, r)
		return
	}
	// A request that outlived its deadline must not change the run.
	if err := r.Context().Err(); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if err := cmd(eng, req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, status int) {
	eng, game, err := s.Session()
	if err != nil {
		s.noSession(w, r)
		return
	}
	s.writeJSON(w, status, StateResponse{
		Game:          game,
		State:         eng.State(),
		EngineVersion: EngineVersion,
	})
}

func (s *Server) noSession(w http.ResponseWriter, r *http.Request) {
	s.errorHandler.HandleError(w, r, NewError(ErrTypeNoSession, "No game loaded; POST /api/v1/session first").
		WithContext("path", r.URL.Path).
		Build())
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
