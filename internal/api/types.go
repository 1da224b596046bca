package api

import (
	"github.com/MJE43/levelup/internal/engine"
	"github.com/MJE43/levelup/internal/games"
	"github.com/MJE43/levelup/internal/progression"
)

// EngineError is the JSON body of every failed request. Context carries
// whatever helps the caller fix the request, such as the rejected command
// and the screen it arrived on.
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func (e EngineError) Error() string {
	return e.Type + ": " + e.Message
}

// Error types
const (
	// Request shape
	ErrTypeValidation     = "validation_error"
	ErrTypeInvalidBody    = "invalid_body"
	ErrTypeUnknownCommand = "unknown_command"

	// Rejected by the engine
	ErrTypeGameNotFound      = "game_not_found"
	ErrTypeInvalidTransition = "invalid_transition"
	ErrTypeHintUnavailable   = "hint_unavailable"

	// Server side
	ErrTypeTimeout   = "timeout"
	ErrTypeInternal  = "internal_error"
	ErrTypeNoSession = "no_session"
)

// ErrorCategory picks the log level and the X-Error-Category header.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidBody, ErrTypeUnknownCommand:
		return CategoryValidation
	case ErrTypeGameNotFound, ErrTypeInvalidTransition, ErrTypeHintUnavailable:
		return CategoryGame
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// GamesResponse lists the registered games
type GamesResponse struct {
	Games         []games.GameSpec `json:"games"`
	EngineVersion string           `json:"engine_version"`
}

// SessionRequest selects the game for the session
type SessionRequest struct {
	Game string `json:"game"`
}

// StateResponse wraps the current snapshot
type StateResponse struct {
	Game          games.GameSpec       `json:"game"`
	State         progression.Snapshot `json:"state"`
	EngineVersion string               `json:"engine_version"`
}

// CommandRequest is the optional body of a command. Answer is used by
// submit, Index by hint (omit it to reveal the next hint).
type CommandRequest struct {
	Answer *engine.Answer `json:"answer,omitempty"`
	Index  *int           `json:"index,omitempty"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status        string `json:"status"`
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
	Uptime        string `json:"uptime"`
	Game          string `json:"game,omitempty"`
	Screen        string `json:"screen,omitempty"`
	Timestamp     string `json:"timestamp"`
}
