package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"dreamcatcher/internal/domain"
	"dreamcatcher/internal/ledger"
	"dreamcatcher/internal/middleware"
	"dreamcatcher/internal/resonance"
)

// ReadingRecorder counts served readings.
type ReadingRecorder interface {
	Reading(variant, mode, vibe string)
}

// App carries the services every handler needs.
type App struct {
	Ledger   *ledger.Ledger
	Engine   *resonance.Engine
	Logger   zerolog.Logger
	Readings ReadingRecorder
	// Ping checks storage for the health endpoint. Nil skips the check.
	Ping func(ctx context.Context) error
	Now  func() time.Time
}

func NewApp(l *ledger.Ledger, engine *resonance.Engine, logger zerolog.Logger) *App {
	return &App{Ledger: l, Engine: engine, Logger: logger, Now: time.Now}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Current  *int   `json:"current,omitempty"`
	Required *int   `json:"required,omitempty"`
	Energy   *int   `json:"energy,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, errorBody{Error: code, Message: msg})
}

// writeError maps domain errors onto HTTP statuses. Refusals the client can
// expect (402, 409) are logged at debug level only.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := a.requestLogger(r)
	var insufficient *domain.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		logger.Debug().Err(err).Msg("spend refused")
		a.json(w, http.StatusPaymentRequired, errorBody{
			Error:    "InsufficientBalance",
			Message:  "not enough energy",
			Current:  &insufficient.Current,
			Required: &insufficient.Required,
		})
	case errors.Is(err, domain.ErrAlreadyCheckedInToday):
		logger.Debug().Err(err).Msg("checkin refused")
		a.error(w, http.StatusConflict, "AlreadyCheckedInToday", "already checked in today")
	case errors.Is(err, domain.ErrAlreadySharedToday):
		logger.Debug().Err(err).Msg("share refused")
		a.error(w, http.StatusConflict, "AlreadySharedToday", "already shared today")
	case errors.Is(err, domain.ErrAlreadyActionedToday):
		a.error(w, http.StatusConflict, "AlreadyActionedToday", "already done today")
	case errors.Is(err, domain.ErrUnknownVariant):
		a.error(w, http.StatusBadRequest, "UnknownVariant", err.Error())
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "ValidationError", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "NotFound", "user not registered")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg("request aborted")
		a.error(w, http.StatusServiceUnavailable, "Unavailable", "request aborted")
	default:
		logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "InternalError", "internal error")
	}
}

func (a *App) requestLogger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

// currentUserID returns the authenticated subject or writes a 401.
func (a *App) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.writeError(w, r, domain.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

const maxBodyBytes = 1 << 16

// decodeBody reads an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.Validationf("invalid payload: %v", err)
	}
	return nil
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
