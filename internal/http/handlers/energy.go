package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"dreamcatcher/internal/domain"
	"dreamcatcher/internal/ledger"
)

type registerResponse struct {
	Created bool `json:"created"`
	ledger.Status
}

// RegisterUser creates the caller's energy account with the welcome grant.
// Repeating the call is harmless and returns 200 instead of 201.
func (a *App) RegisterUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	created, status, err := a.Ledger.Register(r.Context(), userID, false)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	a.json(w, code, registerResponse{Created: created, Status: status})
}

func (a *App) EnergyStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	status, err := a.Ledger.Status(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, status)
}

func (a *App) EnergyBreakdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	b, err := a.Ledger.Breakdown(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, b)
}

func (a *App) EnergyHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(w, r, domain.Validationf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	items, err := a.Ledger.History(r.Context(), userID, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.HistoryRecord{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) EnergyCheckin(w http.ResponseWriter, r *http.Request) {
	a.earn(w, r, a.Ledger.Checkin)
}

func (a *App) EnergyShare(w http.ResponseWriter, r *http.Request) {
	a.earn(w, r, a.Ledger.Share)
}

func (a *App) earn(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID string) (ledger.RewardResult, error)) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	res, err := action(r.Context(), userID)
	if errors.Is(err, domain.ErrAlreadyActionedToday) {
		code := "AlreadyCheckedInToday"
		if errors.Is(err, domain.ErrAlreadySharedToday) {
			code = "AlreadySharedToday"
		}
		a.requestLogger(r).Debug().Str("user_id", userID).Msg(code)
		a.json(w, http.StatusConflict, errorBody{Error: code, Message: err.Error(), Energy: &res.Energy})
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

type consumeRequest struct {
	Action string `json:"action"`
	Cost   int    `json:"cost"`
}

// EnergyConsume spends energy on a paid action. Cost may be omitted to use
// the action's configured price.
func (a *App) EnergyConsume(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}
	var req consumeRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	action, err := domain.ParseSpendAction(req.Action)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Ledger.Consume(r.Context(), userID, action, req.Cost)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}
