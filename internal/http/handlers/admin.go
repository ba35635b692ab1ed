package handlers

import (
	"net/http"
	"strings"

	"dreamcatcher/internal/domain"
)

// AdminCleanup sweeps every lapsed lot now, outside the cron schedule.
func (a *App) AdminCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := a.Ledger.CleanupExpired(r.Context())
	if err != nil {
		// Partial sweeps still report what they removed.
		a.requestLogger(r).Error().Err(err).Int("cleaned", res.CleanedEntries).Msg("admin cleanup incomplete")
		a.error(w, http.StatusInternalServerError, "InternalError", "cleanup incomplete")
		return
	}
	a.json(w, http.StatusOK, res)
}

type grantRequest struct {
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
	Source string `json:"source"`
}

// AdminGrant credits a lot to a user, typically after a purchase settles.
func (a *App) AdminGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		a.writeError(w, r, domain.Validationf("userId is required"))
		return
	}
	if req.Source == "" {
		req.Source = string(domain.SourcePaid)
	}
	source, err := domain.ParseEnergySource(req.Source)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	entry, err := a.Ledger.AddEnergy(r.Context(), req.UserID, req.Amount, source, "")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status, err := a.Ledger.Status(r.Context(), req.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.requestLogger(r).Info().Str("user_id", req.UserID).Int("amount", req.Amount).Str("source", string(source)).Msg("admin grant")
	a.json(w, http.StatusOK, map[string]any{
		"entryId":   entry.ID,
		"energy":    status.Energy,
		"expiresAt": entry.ExpiresAt,
	})
}
