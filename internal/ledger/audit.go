package ledger

import (
	"context"
	"fmt"

	"dreamcatcher/internal/domain"
)

// AuditResult compares the cached balance with the lots backing it.
type AuditResult struct {
	UserID        string `json:"userId"`
	CachedBalance int    `json:"cachedBalance"`
	LotTotal      int    `json:"lotTotal"`
	LiveTotal     int    `json:"liveTotal"`
	LapsedTotal   int    `json:"lapsedTotal"`
}

// Consistent reports whether the cached balance matches the open lots.
func (a AuditResult) Consistent() bool {
	return a.CachedBalance == a.LotTotal
}

// Audit reads the user's lots without modifying anything. Lapsed value not
// yet swept counts toward LotTotal and LapsedTotal but not LiveTotal.
func (l *Ledger) Audit(ctx context.Context, userID string) (AuditResult, error) {
	now := l.clock()
	out := AuditResult{UserID: userID}
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		lots, err := tx.Lots(ctx)
		if err != nil {
			return fmt.Errorf("load lots: %w", err)
		}
		out.CachedBalance = tx.User().EnergyBalance
		for _, lot := range lots {
			out.LotTotal += lot.Remaining
			switch {
			case lot.LiveAt(now):
				out.LiveTotal += lot.Remaining
			case lot.LapsedAt(now):
				out.LapsedTotal += lot.Remaining
			}
		}
		return nil
	})
	return out, err
}
