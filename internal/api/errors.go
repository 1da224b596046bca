package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/levelup/internal/games"
	"github.com/MJE43/levelup/internal/hints"
	"github.com/MJE43/levelup/internal/progression"
)

// ErrorBuilder assembles an EngineError field by field.
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError starts an error of the given type.
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// ForRequest tags the error with the request ID, path and method of r.
func (eb *ErrorBuilder) ForRequest(r *http.Request) *ErrorBuilder {
	eb.requestID = middleware.GetReqID(r.Context())
	eb.context["path"] = r.URL.Path
	eb.context["method"] = r.Method
	return eb
}

// WithCause records the underlying error message
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = fmt.Sprint(err)
	}
	return eb
}

// Build stamps the error with the current time.
func (eb *ErrorBuilder) Build() EngineError {
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   eb.context,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// ErrorHandler turns errors into JSON responses and logs each one.
type ErrorHandler struct {
	logger *log.Logger
}

func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError maps domain errors to a status and writes the response
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var engineErr EngineError
	if errors.As(err, &engineErr) {
		eh.respond(w, r, statusFor(engineErr.Type), engineErr)
		return
	}

	errType, message := classify(err)
	engineErr = NewError(errType, message).ForRequest(r).WithCause(err).Build()

	var te *progression.TransitionError
	if errors.As(err, &te) {
		engineErr.Context["command"] = te.Command
		engineErr.Context["screen"] = string(te.Screen)
	}

	eh.respond(w, r, statusFor(errType), engineErr)
}

// HandleValidationError handles malformed requests
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, errType, field, message string) {
	engineErr := NewError(errType, "Validation failed: "+message).
		ForRequest(r).
		WithContext("field", field).
		Build()

	eh.respond(w, r, statusFor(errType), engineErr)
}

func classify(err error) (string, string) {
	switch {
	case progression.IsInvalidTransition(err):
		return ErrTypeInvalidTransition, "Command not allowed on the current screen"
	case errors.Is(err, hints.ErrOutOfRange), errors.Is(err, hints.ErrNoHintsLeft):
		return ErrTypeHintUnavailable, "No such hint for this round"
	case errors.Is(err, games.ErrGameNotFound):
		return ErrTypeGameNotFound, "Game not found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrTypeTimeout, "Request timed out before the command ran"
	default:
		return ErrTypeInternal, "Internal server error"
	}
}

func statusFor(errType string) int {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidBody:
		return http.StatusBadRequest
	case ErrTypeUnknownCommand, ErrTypeGameNotFound:
		return http.StatusNotFound
	case ErrTypeInvalidTransition:
		return http.StatusConflict
	case ErrTypeHintUnavailable:
		return http.StatusUnprocessableEntity
	case ErrTypeNoSession:
		return http.StatusServiceUnavailable
	case ErrTypeTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (eh *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, status int, engineErr EngineError) {
	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// Client mistakes log at WARN.
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	cat := GetErrorCategory(engineErr.Type)
	level := "ERROR"
	switch cat {
	case CategoryValidation, CategoryGame:
		level = "WARN"
	}
	eh.logger.Printf("api_error level=%s type=%s category=%s status=%d request_id=%s path=%s message=%q context=%v",
		level, engineErr.Type, cat, status, engineErr.RequestID, r.URL.Path, engineErr.Message, engineErr.Context)
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Engine-Version", EngineVersion)
	h.Set("X-Error-Type", engineErr.Type)
	h.Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Printf("error_encode_failed type=%s error=%v", engineErr.Type, err)
	}
}

// RecoveryHandler answers a panicking handler with a 500 EngineError.
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			engineErr := NewError(ErrTypeInternal, "Internal server error").
				ForRequest(r).
				WithContext("panic", fmt.Sprint(rvr)).
				Build()
			eh.logger.Printf("panic_recovered request_id=%s path=%s panic=%v", engineErr.RequestID, r.URL.Path, rvr)
			eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
		}()

		next.ServeHTTP(w, r)
	})
}
