package handlers

import (
	"net/http"
	"strings"
	"time"

	"dreamcatcher/internal/domain"
	"dreamcatcher/internal/middleware"
	"dreamcatcher/internal/resonance"
)

type readingRequest struct {
	Variant  string `json:"variant"`
	Mode     string `json:"mode"`
	Locale   string `json:"locale"`
	A        *int   `json:"a"`
	B        *int   `json:"b"`
	C        *int   `json:"c"`
	Birthday string `json:"birthday"`
	At       string `json:"at"`
}

// CreateReading computes a resonance reading. Seeds come either from the
// explicit a, b and c digits or from a birthday. The mode defaults to member
// for authenticated callers and guest otherwise; member mode requires a
// token.
func (a *App) CreateReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Variant) == "" {
		a.writeError(w, r, domain.Validationf("variant is required"))
		return
	}
	variant, err := resonance.ParseVariant(req.Variant)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	mode := resonance.ModeGuest
	if userID != "" {
		mode = resonance.ModeMember
	}
	if req.Mode != "" {
		if mode, err = resonance.ParseMode(strings.ToLower(strings.TrimSpace(req.Mode))); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if mode == resonance.ModeMember && userID == "" {
		a.writeError(w, r, domain.ErrUnauthorized)
		return
	}

	in, err := a.readingInputs(req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	in.Mode = mode
	in.Locale = middleware.NormalizeLocale(req.Locale)
	if in.Locale == "" {
		in.Locale = middleware.LocaleFromContext(r.Context())
	}

	reading, err := a.Engine.Read(variant, in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.Readings != nil {
		a.Readings.Reading(string(reading.Variant), string(reading.Mode), string(reading.Vibe))
	}
	a.requestLogger(r).Debug().
		Str("variant", string(reading.Variant)).
		Str("mode", string(reading.Mode)).
		Int("score", reading.Score).
		Msg("reading computed")
	a.json(w, http.StatusOK, reading)
}

func (a *App) readingInputs(req readingRequest) (resonance.Inputs, error) {
	at := a.now().UTC()
	if req.At != "" {
		t, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			return resonance.Inputs{}, domain.Validationf("at must be RFC 3339")
		}
		at = t.UTC()
	}

	explicit := req.A != nil || req.B != nil || req.C != nil
	switch {
	case explicit && req.Birthday != "":
		return resonance.Inputs{}, domain.Validationf("send either a, b and c or birthday, not both")
	case explicit:
		if req.A == nil || req.B == nil || req.C == nil {
			return resonance.Inputs{}, domain.Validationf("a, b and c are all required")
		}
		return resonance.Inputs{A: *req.A, B: *req.B, C: *req.C, At: at}, nil
	case req.Birthday != "":
		birth, err := time.Parse(time.DateOnly, req.Birthday)
		if err != nil {
			return resonance.Inputs{}, domain.Validationf("birthday must be YYYY-MM-DD")
		}
		if birth.After(at) {
			return resonance.Inputs{}, domain.Validationf("birthday is in the future")
		}
		return resonance.InputsFromBirthday(birth, at), nil
	default:
		return resonance.Inputs{}, domain.Validationf("a, b and c or birthday required")
	}
}
