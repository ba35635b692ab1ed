package ledger

import (
	"context"
	"testing"
	"time"

	"dreamcatcher/internal/domain"
)

func TestAuditSeparatesLiveAndLapsedValue(t *testing.T) {
	l, _, clock := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	if _, _, err := l.Register(ctx, "u1", false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := l.AddEnergy(ctx, "u1", 10, domain.SourcePaid, ""); err != nil {
		t.Fatalf("add energy: %v", err)
	}
	if _, err := l.Consume(ctx, "u1", domain.HistoryPersonalTiming, 0); err != nil {
		t.Fatalf("consume: %v", err)
	}

	a, err := l.Audit(ctx, "u1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !a.Consistent() || a.CachedBalance != 27 || a.LiveTotal != 27 || a.LapsedTotal != 0 {
		t.Fatalf("unexpected audit %+v", a)
	}

	// The welcome lot (17 left) lapses; nothing has swept it yet.
	clock.Advance(30 * 24 * time.Hour)
	a, err = l.Audit(ctx, "u1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !a.Consistent() || a.LotTotal != 27 || a.LiveTotal != 10 || a.LapsedTotal != 17 {
		t.Fatalf("unexpected audit after expiry %+v", a)
	}

	if _, err := l.Audit(ctx, "ghost"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}
