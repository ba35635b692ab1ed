package domain

import (
	"fmt"
	"time"
)

// EnergySource tells where a credit lot came from.
type EnergySource string

const (
	SourceFree EnergySource = "free"
	SourcePaid EnergySource = "paid"
)

// ParseEnergySource validates a source name.
func ParseEnergySource(s string) (EnergySource, error) {
	switch EnergySource(s) {
	case SourceFree, SourcePaid:
		return EnergySource(s), nil
	}
	return "", Validationf("unsupported energy source %q", s)
}

// HistoryType enumerates audit trail record kinds.
type HistoryType string

const (
	HistoryWelcome         HistoryType = "welcome"
	HistoryCheckin         HistoryType = "checkin"
	HistoryShare           HistoryType = "share"
	HistoryPersonalTiming  HistoryType = "personal_timing"
	HistoryDetailedInsight HistoryType = "detailed_insight"
	HistoryPurchase        HistoryType = "purchase"
	HistoryGrant           HistoryType = "grant"
	HistoryExpired         HistoryType = "expired"
)

// SpendActions lists the history types that consume energy.
var SpendActions = []HistoryType{HistoryPersonalTiming, HistoryDetailedInsight}

// ParseSpendAction validates a spend action name.
func ParseSpendAction(s string) (HistoryType, error) {
	for _, a := range SpendActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", Validationf("unsupported action %q", s)
}

// LedgerEntry is an immutable ledger row. Positive amounts are credit lots
// and carry an expiry; negative amounts are debits and never do.
type LedgerEntry struct {
	ID        string
	UserID    string
	Amount    int
	Source    EnergySource
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// IsCredit reports whether the entry is a credit lot.
func (e LedgerEntry) IsCredit() bool {
	return e.Amount > 0
}

// Validate checks the credit/debit expiry rule.
func (e LedgerEntry) Validate() error {
	switch {
	case e.Amount == 0:
		return fmt.Errorf("ledger entry %s: zero amount", e.ID)
	case e.Amount > 0 && e.ExpiresAt == nil:
		return fmt.Errorf("ledger entry %s: credit without expiry", e.ID)
	case e.Amount < 0 && e.ExpiresAt != nil:
		return fmt.Errorf("ledger entry %s: debit with expiry", e.ID)
	}
	return nil
}

// Lot is a credit entry together with its unconsumed value.
type Lot struct {
	Entry     LedgerEntry
	Remaining int
}

// LiveAt reports whether the lot can still be spent at t.
func (l Lot) LiveAt(t time.Time) bool {
	return l.Remaining > 0 && l.Entry.ExpiresAt != nil && l.Entry.ExpiresAt.After(t)
}

// LapsedAt reports whether the lot has expired with value left at t.
func (l Lot) LapsedAt(t time.Time) bool {
	return l.Remaining > 0 && l.Entry.ExpiresAt != nil && !l.Entry.ExpiresAt.After(t)
}

// LotDraw records how much a debit took from one lot.
type LotDraw struct {
	DebitID string `json:"-"`
	LotID   string `json:"lot_id"`
	Amount  int    `json:"amount"`
}

// HistoryRecord is one append-only audit trail row.
type HistoryRecord struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Type        HistoryType    `json:"type"`
	Amount      int            `json:"amount"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Breakdown summarises spendable energy by source.
type Breakdown struct {
	FreeEnergy     int        `json:"freeEnergy"`
	PaidEnergy     int        `json:"paidEnergy"`
	Total          int        `json:"total"`
	EarliestExpiry *time.Time `json:"earliestExpiry"`
}
