package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/levelup/internal/games"
	"github.com/MJE43/levelup/internal/livews"
	"github.com/MJE43/levelup/internal/progression"
	"github.com/MJE43/levelup/internal/scoring"
)

var ErrNoSession = errors.New("api: no session loaded")

// Options configures a Server.
type Options struct {
	// Game is loaded when the server starts. Empty leaves the server
	// without a session until POST /api/v1/session.
	Game   string
	Policy scoring.Policy
	Env    games.Env
	// Hub receives every snapshot; nil disables /ws.
	Hub *livews.Hub
	// Clock overrides the countdown source, mainly for tests.
	Clock progression.Clock
	// Renderers are additional snapshot sinks.
	Renderers []progression.Renderer
	Logger    *log.Logger
}

// Server exposes one in-memory play session over HTTP
type Server struct {
	opts         Options
	errorHandler *ErrorHandler
	logger       *log.Logger
	engineLogger *log.Logger
	startTime    time.Time

	mu     sync.RWMutex
	game   games.GameSpec
	engine *progression.Engine

	// renderMu orders frame delivery against session swaps. generation
	// identifies the live session; frames of older ones are dropped.
	renderMu   sync.Mutex
	generation uint64
}

// sessionRenderer forwards the snapshots of one session while it is the
// live one.
type sessionRenderer struct {
	s    *Server
	gen  uint64
	next progression.Renderer
}

func (r *sessionRenderer) Render(snap progression.Snapshot) {
	r.s.renderMu.Lock()
	defer r.s.renderMu.Unlock()
	if r.gen != r.s.generation {
		return
	}
	r.next.Render(snap)
}

// NewServer creates a new API server and loads opts.Game when set
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile)
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		opts:         opts,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		engineLogger: log.New(logger.Writer(), "[ENGINE] ", log.LstdFlags),
		startTime:    time.Now(),
	}

	if opts.Game != "" {
		if err := s.LoadGame(opts.Game); err != nil {
			return nil, err
		}
	}

	s.logger.Printf("server_created games=%d game=%s engine_version=%s", len(games.ListGames()), opts.Game, EngineVersion)
	return s, nil
}

// LoadGame replaces the session with a fresh engine for the game
func (s *Server) LoadGame(id string) error {
	levels, err := games.Load(id, s.opts.Env)
	if err != nil {
		return err
	}
	g, _ := games.GetGame(id)

	renderers := progression.MultiRenderer{}
	if s.opts.Hub != nil {
		renderers = append(renderers, s.opts.Hub)
	}
	renderers = append(renderers, s.opts.Renderers...)
	sr := &sessionRenderer{s: s, next: renderers}

	eng, err := progression.NewEngine(levels, s.opts.Policy, sr)
	if err != nil {
		return fmt.Errorf("game %s: %w", id, err)
	}
	if s.opts.Clock != nil {
		eng.SetClock(s.opts.Clock)
	}
	eng.SetLogger(s.engineLogger)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.renderMu.Lock()
	s.generation++
	sr.gen = s.generation
	if s.opts.Hub != nil {
		s.opts.Hub.Reset()
	}
	s.renderMu.Unlock()

	if old := s.engine; old != nil {
		// Stops any running countdown of the old session. An engine
		// already on the menu has nothing to stop.
		if err := old.ReturnToMenu(); err != nil && !progression.IsInvalidTransition(err) {
			s.logger.Printf("session_stop_failed game=%s error=%v", s.game.ID, err)
		}
	}
	s.engine = eng
	s.game = g.Spec()

	s.logger.Printf("session_loaded game=%s levels=%d", id, len(levels))
	return nil
}

// Session returns the current engine and game
func (s *Server) Session() (*progression.Engine, games.GameSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return nil, games.GameSpec{}, ErrNoSession
	}
	return s.engine, s.game, nil
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealth)
	if s.opts.Hub != nil {
		r.Get("/ws", s.opts.Hub.ServeWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/version", s.handleVersion)
		r.Get("/games", s.handleListGames)
		r.Post("/session", s.handleCreateSession)
		r.Get("/state", s.handleState)
		r.Post("/commands/{command}", s.handleCommand)
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("response_encode_failed status=%d error=%v", status, err)
	}
}
