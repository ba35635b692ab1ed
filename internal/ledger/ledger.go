// Package ledger implements energy accounting: expiring credit lots consumed
// soonest-expiry first, daily-capped earning actions and an audit history.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dreamcatcher/internal/domain"
)

// Config holds ledger rules.
type Config struct {
	FreeLotTTL           time.Duration
	PaidLotTTL           time.Duration
	WelcomeGrant         int
	CheckinReward        int
	ShareReward          int
	SubscriberMultiplier int
	ActionCosts          map[domain.HistoryType]int
	MaxCost              int
}

// DefaultConfig returns the production rules.
func DefaultConfig() Config {
	return Config{
		FreeLotTTL:           30 * 24 * time.Hour,
		PaidLotTTL:           180 * 24 * time.Hour,
		WelcomeGrant:         20,
		CheckinReward:        5,
		ShareReward:          3,
		SubscriberMultiplier: 2,
		ActionCosts: map[domain.HistoryType]int{
			domain.HistoryPersonalTiming:  3,
			domain.HistoryDetailedInsight: 5,
		},
		MaxCost: 100,
	}
}

// Observer receives ledger events after they commit.
type Observer interface {
	Credited(source domain.EnergySource, kind domain.HistoryType, amount int)
	Consumed(action domain.HistoryType, amount int)
	Refused(reason string)
	Expired(lots, amount int)
}

type nopObserver struct{}

func (nopObserver) Credited(domain.EnergySource, domain.HistoryType, int) {}
func (nopObserver) Consumed(domain.HistoryType, int)                      {}
func (nopObserver) Refused(string)                                        {}
func (nopObserver) Expired(int, int)                                      {}

// Ledger is the energy accounting service.
type Ledger struct {
	store    domain.LedgerStore
	cfg      Config
	now      func() time.Time
	logger   zerolog.Logger
	observer Observer
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithConfig(cfg Config) Option {
	return func(l *Ledger) { l.cfg = cfg }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) {
		if o != nil {
			l.observer = o
		}
	}
}

// New builds a Ledger over store.
func New(store domain.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		cfg:      DefaultConfig(),
		now:      time.Now,
		logger:   zerolog.Nop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the rules in effect.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Status is the balance view shown to a user.
type Status struct {
	Energy       int  `json:"energy"`
	IsSubscriber bool `json:"isSubscriber"`
	CanCheckin   bool `json:"canCheckin"`
	CanShare     bool `json:"canShare"`
}

// RewardResult is returned by daily earning actions.
type RewardResult struct {
	Energy     int  `json:"energy"`
	Reward     int  `json:"reward"`
	CanCheckin bool `json:"canCheckin"`
	CanShare   bool `json:"canShare"`
}

// ConsumeResult describes a committed spend.
type ConsumeResult struct {
	EntryID  string           `json:"entryId"`
	Energy   int              `json:"energy"`
	Consumed int              `json:"consumed"`
	Draws    []domain.LotDraw `json:"lots"`
}

// CleanupResult summarises an expiry sweep.
type CleanupResult struct {
	CleanedEntries int `json:"cleanedEntries"`
	TotalExpired   int `json:"totalExpired"`
	Users          int `json:"users"`
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

func (l *Ledger) ttl(source domain.EnergySource) time.Duration {
	if source == domain.SourcePaid {
		return l.cfg.PaidLotTTL
	}
	return l.cfg.FreeLotTTL
}

// Register creates a user and grants the welcome lot in one transaction.
// Registering an existing user changes nothing.
func (l *Ledger) Register(ctx context.Context, userID string, subscriber bool) (bool, Status, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, Status{}, domain.Validationf("user id required")
	}
	now := l.clock()
	user := domain.User{ID: userID, IsSubscriber: subscriber, CreatedAt: now, UpdatedAt: now}
	created, err := l.store.Register(ctx, user, func(tx domain.LedgerTx) error {
		if l.cfg.WelcomeGrant <= 0 {
			return nil
		}
		_, err := l.credit(ctx, tx, now, l.cfg.WelcomeGrant, domain.SourceFree, domain.HistoryWelcome, "Welcome energy")
		return err
	})
	if err != nil {
		return false, Status{}, fmt.Errorf("register user: %w", err)
	}
	if created {
		l.logger.Info().Str("user_id", userID).Int("amount", l.cfg.WelcomeGrant).Msg("ledger: user registered")
		if l.cfg.WelcomeGrant > 0 {
			l.observer.Credited(domain.SourceFree, domain.HistoryWelcome, l.cfg.WelcomeGrant)
		}
	}
	status, err := l.Status(ctx, userID)
	return created, status, err
}

// AddEnergy credits one lot. Free lots expire after FreeLotTTL and paid lots
// after PaidLotTTL. kind labels the history record; empty picks grant or
// purchase from the source.
func (l *Ledger) AddEnergy(ctx context.Context, userID string, amount int, source domain.EnergySource, kind domain.HistoryType) (domain.LedgerEntry, error) {
	if amount <= 0 {
		return domain.LedgerEntry{}, domain.Validationf("amount must be positive")
	}
	if _, err := domain.ParseEnergySource(string(source)); err != nil {
		return domain.LedgerEntry{}, err
	}
	if kind == "" {
		kind = domain.HistoryGrant
		if source == domain.SourcePaid {
			kind = domain.HistoryPurchase
		}
	}
	now := l.clock()
	var (
		entry domain.LedgerEntry
		swept sweepResult
	)
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		var err error
		if swept, err = l.sweep(ctx, tx, now); err != nil {
			return err
		}
		entry, err = l.credit(ctx, tx, now, amount, source, kind, describe(kind))
		return err
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	l.reportSweep(userID, swept)
	l.observer.Credited(source, kind, amount)
	l.logger.Info().Str("user_id", userID).Int("amount", amount).Str("source", string(source)).Msg("ledger: energy added")
	return entry, nil
}

// Consume spends cost energy on action, drawing from the soonest-expiring
// live lots first. A cost of zero uses the action's default cost. When the
// live lots cannot cover the cost nothing is written and an
// *domain.InsufficientBalanceError is returned.
func (l *Ledger) Consume(ctx context.Context, userID string, action domain.HistoryType, cost int) (ConsumeResult, error) {
	if _, err := domain.ParseSpendAction(string(action)); err != nil {
		return ConsumeResult{}, err
	}
	if cost == 0 {
		cost = l.cfg.ActionCosts[action]
	}
	if cost <= 0 {
		return ConsumeResult{}, domain.Validationf("cost must be positive")
	}
	if l.cfg.MaxCost > 0 && cost > l.cfg.MaxCost {
		return ConsumeResult{}, domain.Validationf("cost exceeds %d", l.cfg.MaxCost)
	}

	now := l.clock()
	var (
		result ConsumeResult
		swept  sweepResult
	)
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		var err error
		if swept, err = l.sweep(ctx, tx, now); err != nil {
			return err
		}
		lots, err := tx.Lots(ctx)
		if err != nil {
			return fmt.Errorf("load lots: %w", err)
		}
		plan := planDraws(lots, cost, now)
		if plan.available < cost {
			return &domain.InsufficientBalanceError{Current: plan.available, Required: cost}
		}

		debit := domain.LedgerEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    -cost,
			Source:    plan.source,
			CreatedAt: now,
		}
		for i := range plan.draws {
			plan.draws[i].DebitID = debit.ID
		}
		if err := tx.InsertEntry(ctx, debit, plan.draws); err != nil {
			return fmt.Errorf("insert debit: %w", err)
		}
		user := tx.User()
		user.EnergyBalance -= cost
		user.UpdatedAt = now
		if user.EnergyBalance < 0 {
			return fmt.Errorf("%w: balance of user %s would go negative", domain.ErrInternal, userID)
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		l.appendHistory(ctx, tx, domain.HistoryRecord{
			Type:        action,
			Amount:      -cost,
			Description: describe(action),
			Metadata:    map[string]any{"entry_id": debit.ID, "lots": plan.draws},
			CreatedAt:   now,
		})
		result = ConsumeResult{EntryID: debit.ID, Energy: user.EnergyBalance, Consumed: cost, Draws: plan.draws}
		return nil
	})
	if err != nil {
		var insufficient *domain.InsufficientBalanceError
		if errors.As(err, &insufficient) {
			l.observer.Refused("insufficient_balance")
			l.logger.Debug().Str("user_id", userID).Int("current", insufficient.Current).Int("required", cost).Msg("ledger: spend refused")
		}
		return ConsumeResult{}, err
	}
	l.reportSweep(userID, swept)
	l.observer.Consumed(action, cost)
	l.logger.Info().Str("user_id", userID).Str("action", string(action)).Int("cost", cost).Int("lots", len(result.Draws)).Msg("ledger: energy consumed")
	return result, nil
}

// Breakdown reports live energy by source. It uses the same availability
// rule as Consume.
func (l *Ledger) Breakdown(ctx context.Context, userID string) (domain.Breakdown, error) {
	now := l.clock()
	var out domain.Breakdown
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		lots, err := tx.Lots(ctx)
		if err != nil {
			return fmt.Errorf("load lots: %w", err)
		}
		out = summarize(lots, now)
		return nil
	})
	return out, err
}

// Status returns the user's live energy and daily action availability.
func (l *Ledger) Status(ctx context.Context, userID string) (Status, error) {
	now := l.clock()
	var out Status
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		lots, err := tx.Lots(ctx)
		if err != nil {
			return fmt.Errorf("load lots: %w", err)
		}
		user := tx.User()
		out = Status{
			Energy:       summarize(lots, now).Total,
			IsSubscriber: user.IsSubscriber,
			CanCheckin:   CanActToday(user.LastCheckin, now),
			CanShare:     CanActToday(user.LastShare, now),
		}
		return nil
	})
	return out, err
}

// SetSubscriber changes the subscriber flag.
func (l *Ledger) SetSubscriber(ctx context.Context, userID string, subscriber bool) (Status, error) {
	now := l.clock()
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		user := tx.User()
		user.IsSubscriber = subscriber
		user.UpdatedAt = now
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		return Status{}, err
	}
	return l.Status(ctx, userID)
}

// History returns the newest history records first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	var out []domain.HistoryRecord
	err := l.store.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		var err error
		out, err = tx.History(ctx, limit)
		return err
	})
	return out, err
}

// credit inserts a lot, raises the balance and records history.
func (l *Ledger) credit(ctx context.Context, tx domain.LedgerTx, now time.Time, amount int, source domain.EnergySource, kind domain.HistoryType, description string) (domain.LedgerEntry, error) {
	user := tx.User()
	expires := now.Add(l.ttl(source))
	entry := domain.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Amount:    amount,
		Source:    source,
		ExpiresAt: &expires,
		CreatedAt: now,
	}
	if err := tx.InsertEntry(ctx, entry, nil); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("insert credit: %w", err)
	}
	user.EnergyBalance += amount
	user.UpdatedAt = now
	if err := tx.UpdateUser(ctx, user); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("update balance: %w", err)
	}
	l.appendHistory(ctx, tx, domain.HistoryRecord{
		Type:        kind,
		Amount:      amount,
		Description: description,
		Metadata: map[string]any{
			"entry_id":   entry.ID,
			"source":     source,
			"expires_at": expires,
		},
		CreatedAt: now,
	})
	return entry, nil
}

// appendHistory writes an audit record. History is advisory: a failure is
// logged and the surrounding balance change still commits.
func (l *Ledger) appendHistory(ctx context.Context, tx domain.LedgerTx, rec domain.HistoryRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UserID = tx.User().ID
	if err := tx.AppendHistory(ctx, rec); err != nil {
		l.logger.Warn().Err(err).Str("user_id", rec.UserID).Str("type", string(rec.Type)).Msg("ledger: history write failed")
	}
}

var descriptions = map[domain.HistoryType]string{
	domain.HistoryWelcome:         "Welcome energy",
	domain.HistoryCheckin:         "Daily check-in",
	domain.HistoryShare:           "Shared a reading",
	domain.HistoryPersonalTiming:  "Personal timing insight",
	domain.HistoryDetailedInsight: "Detailed insight",
	domain.HistoryPurchase:        "Energy purchase",
	domain.HistoryGrant:           "Energy grant",
	domain.HistoryExpired:         "Expired energy",
}

func describe(kind domain.HistoryType) string {
	if d, ok := descriptions[kind]; ok {
		return d
	}
	return string(kind)
}
