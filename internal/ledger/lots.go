package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"dreamcatcher/internal/domain"
)

// SortLots orders lots soonest expiry first, then oldest, then by id.
func SortLots(lots []domain.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i].Entry, lots[j].Entry
		switch {
		case a.ExpiresAt == nil || b.ExpiresAt == nil:
			return a.ExpiresAt != nil
		case !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type drawPlan struct {
	draws     []domain.LotDraw
	available int
	source    domain.EnergySource
}

// planDraws walks live lots in expiry order and takes from each until cost
// is covered. When the lots cannot cover cost the plan has no draws and
// available tells how much could have been spent.
func planDraws(lots []domain.Lot, cost int, now time.Time) drawPlan {
	live := make([]domain.Lot, 0, len(lots))
	var plan drawPlan
	for _, lot := range lots {
		if lot.LiveAt(now) {
			live = append(live, lot)
			plan.available += lot.Remaining
		}
	}
	if plan.available < cost {
		return plan
	}
	SortLots(live)
	left := cost
	for _, lot := range live {
		if left == 0 {
			break
		}
		take := min(lot.Remaining, left)
		if len(plan.draws) == 0 {
			plan.source = lot.Entry.Source
		}
		plan.draws = append(plan.draws, domain.LotDraw{LotID: lot.Entry.ID, Amount: take})
		left -= take
	}
	return plan
}

// summarize totals live lots by source.
func summarize(lots []domain.Lot, now time.Time) domain.Breakdown {
	var out domain.Breakdown
	for _, lot := range lots {
		if !lot.LiveAt(now) {
			continue
		}
		switch lot.Entry.Source {
		case domain.SourcePaid:
			out.PaidEnergy += lot.Remaining
		default:
			out.FreeEnergy += lot.Remaining
		}
		if out.EarliestExpiry == nil || lot.Entry.ExpiresAt.Before(*out.EarliestExpiry) {
			exp := *lot.Entry.ExpiresAt
			out.EarliestExpiry = &exp
		}
	}
	out.Total = out.FreeEnergy + out.PaidEnergy
	return out
}

type sweepResult struct {
	lots   int
	amount int
}

// sweep zeroes every lot of the locked user that expired at or before now
// with value left, one debit per lot. Live lots are never touched, and a
// swept lot has nothing left, so repeating the sweep writes nothing.
func (l *Ledger) sweep(ctx context.Context, tx domain.LedgerTx, now time.Time) (sweepResult, error) {
	lots, err := tx.Lots(ctx)
	if err != nil {
		return sweepResult{}, fmt.Errorf("load lots: %w", err)
	}
	var (
		res    sweepResult
		lotIDs []string
	)
	user := tx.User()
	for _, lot := range lots {
		if !lot.LapsedAt(now) {
			continue
		}
		debit := domain.LedgerEntry{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Amount:    -lot.Remaining,
			Source:    lot.Entry.Source,
			CreatedAt: now,
		}
		draw := domain.LotDraw{DebitID: debit.ID, LotID: lot.Entry.ID, Amount: lot.Remaining}
		if err := tx.InsertEntry(ctx, debit, []domain.LotDraw{draw}); err != nil {
			return sweepResult{}, fmt.Errorf("insert expiry debit: %w", err)
		}
		user.EnergyBalance -= lot.Remaining
		res.lots++
		res.amount += lot.Remaining
		lotIDs = append(lotIDs, lot.Entry.ID)
	}
	if res.lots == 0 {
		return res, nil
	}
	if user.EnergyBalance < 0 {
		return sweepResult{}, fmt.Errorf("%w: balance of user %s would go negative", domain.ErrInternal, user.ID)
	}
	user.UpdatedAt = now
	if err := tx.UpdateUser(ctx, user); err != nil {
		return sweepResult{}, fmt.Errorf("update balance: %w", err)
	}
	l.appendHistory(ctx, tx, domain.HistoryRecord{
		Type:        domain.HistoryExpired,
		Amount:      -res.amount,
		Description: describe(domain.HistoryExpired),
		Metadata:    map[string]any{"lots": lotIDs},
		CreatedAt:   now,
	})
	return res, nil
}

func (l *Ledger) reportSweep(userID string, res sweepResult) {
	if res.lots == 0 {
		return
	}
	l.observer.Expired(res.lots, res.amount)
	l.logger.Info().Str("user_id", userID).Int("lots", res.lots).Int("amount", res.amount).Msg("ledger: expired lots swept")
}

// CleanupExpired sweeps lapsed lots for every affected user. Each user is
// swept under its own lock, so it is safe alongside live traffic and safe to
// rerun. Per-user failures are collected and the sweep continues.
func (l *Ledger) CleanupExpired(ctx context.Context) (CleanupResult, error) {
	now := l.clock()
	users, err := l.store.UsersWithLapsedLots(ctx, now)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("list users with lapsed lots: %w", err)
	}
	var (
		out  CleanupResult
		errs []error
	)
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var swept sweepResult
		err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
			var err error
			swept, err = l.sweep(ctx, tx, now)
			return err
		})
		if err != nil {
			l.logger.Error().Err(err).Str("user_id", userID).Msg("ledger: cleanup failed for user")
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if swept.lots > 0 {
			out.Users++
			out.CleanedEntries += swept.lots
			out.TotalExpired += swept.amount
			l.reportSweep(userID, swept)
		}
	}
	l.logger.Info().Int("users", out.Users).Int("entries", out.CleanedEntries).Int("amount", out.TotalExpired).Msg("ledger: cleanup finished")
	if len(errs) > 0 {
		return out, fmt.Errorf("cleanup: %d users failed: %w", len(errs), errors.Join(errs...))
	}
	return out, nil
}
