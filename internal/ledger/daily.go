package ledger

import (
	"context"
	"time"

	"dreamcatcher/internal/domain"
)

// StartOfDay returns midnight UTC of t's UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CanActToday reports whether an action last taken at last may be taken
// again at now. Days are UTC calendar days.
func CanActToday(last *time.Time, now time.Time) bool {
	return last == nil || last.Before(StartOfDay(now))
}

type dailyAction struct {
	kind     domain.HistoryType
	reward   func(Config) int
	last     func(domain.User) *time.Time
	mark     func(*domain.User, time.Time)
	rejected error
}

var (
	checkinAction = dailyAction{
		kind:     domain.HistoryCheckin,
		reward:   func(c Config) int { return c.CheckinReward },
		last:     func(u domain.User) *time.Time { return u.LastCheckin },
		mark:     func(u *domain.User, t time.Time) { u.LastCheckin = &t },
		rejected: domain.ErrAlreadyCheckedInToday,
	}
	shareAction = dailyAction{
		kind:     domain.HistoryShare,
		reward:   func(c Config) int { return c.ShareReward },
		last:     func(u domain.User) *time.Time { return u.LastShare },
		mark:     func(u *domain.User, t time.Time) { u.LastShare = &t },
		rejected: domain.ErrAlreadySharedToday,
	}
)

// Checkin grants the daily check-in reward, doubled for subscribers by
// default. A second check-in on the same UTC day changes nothing and returns
// the current state with domain.ErrAlreadyCheckedInToday.
func (l *Ledger) Checkin(ctx context.Context, userID string) (RewardResult, error) {
	return l.earnDaily(ctx, userID, checkinAction)
}

// Share grants the daily share reward, with the same once-per-day rule as
// Checkin.
func (l *Ledger) Share(ctx context.Context, userID string) (RewardResult, error) {
	return l.earnDaily(ctx, userID, shareAction)
}

func (l *Ledger) earnDaily(ctx context.Context, userID string, action dailyAction) (RewardResult, error) {
	now := l.clock()
	var (
		result   RewardResult
		rejected bool
		swept    sweepResult
	)
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		user := tx.User()
		if !CanActToday(action.last(user), now) {
			lots, err := tx.Lots(ctx)
			if err != nil {
				return err
			}
			rejected = true
			result = RewardResult{
				Energy:     summarize(lots, now).Total,
				CanCheckin: CanActToday(user.LastCheckin, now),
				CanShare:   CanActToday(user.LastShare, now),
			}
			return nil
		}

		var err error
		if swept, err = l.sweep(ctx, tx, now); err != nil {
			return err
		}
		reward := action.reward(l.cfg) * user.RewardMultiplier(l.cfg.SubscriberMultiplier)
		if reward > 0 {
			if _, err := l.credit(ctx, tx, now, reward, domain.SourceFree, action.kind, describe(action.kind)); err != nil {
				return err
			}
		}
		user = tx.User()
		action.mark(&user, now)
		user.UpdatedAt = now
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		result = RewardResult{
			Energy:     user.EnergyBalance,
			Reward:     reward,
			CanCheckin: CanActToday(user.LastCheckin, now),
			CanShare:   CanActToday(user.LastShare, now),
		}
		return nil
	})
	if err != nil {
		return RewardResult{}, err
	}
	if rejected {
		l.observer.Refused(string(action.kind) + "_repeat")
		l.logger.Debug().Str("user_id", userID).Str("action", string(action.kind)).Msg("ledger: daily action already taken")
		return result, action.rejected
	}
	l.reportSweep(userID, swept)
	l.observer.Credited(domain.SourceFree, action.kind, result.Reward)
	l.logger.Info().Str("user_id", userID).Str("action", string(action.kind)).Int("reward", result.Reward).Msg("ledger: daily reward granted")
	return result, nil
}
