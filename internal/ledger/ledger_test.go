package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dreamcatcher/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var baseTime = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, cfg Config) (*Ledger, *MemoryStore, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := newFakeClock(baseTime)
	return New(store, WithConfig(cfg), WithClock(clock.Now)), store, clock
}

// registerEmpty creates a user without a welcome grant.
func registerEmpty(t *testing.T, l *Ledger, userID string) {
	t.Helper()
	grant := l.cfg.WelcomeGrant
	l.cfg.WelcomeGrant = 0
	defer func() { l.cfg.WelcomeGrant = grant }()
	if _, _, err := l.Register(context.Background(), userID, false); err != nil {
		t.Fatalf("register %s: %v", userID, err)
	}
}

func entrySum(entries []domain.LedgerEntry) int {
	sum := 0
	for _, e := range entries {
		sum += e.Amount
	}
	return sum
}

func assertBalanceMatchesEntries(t *testing.T, store *MemoryStore, userID string) {
	t.Helper()
	user, ok := store.User(userID)
	if !ok {
		t.Fatalf("user %s missing", userID)
	}
	if got := entrySum(store.Entries(userID)); got != user.EnergyBalance {
		t.Fatalf("sum of entries = %d, cached balance = %d", got, user.EnergyBalance)
	}
	if user.EnergyBalance < 0 {
		t.Fatalf("negative balance %d", user.EnergyBalance)
	}
}

func TestRegisterGrantsWelcomeLot(t *testing.T) {
	l, store, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()

	created, status, err := l.Register(ctx, "u1", false)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !created || status.Energy != 20 || !status.CanCheckin || !status.CanShare {
		t.Fatalf("unexpected register result created=%v status=%+v", created, status)
	}

	entries := store.Entries("u1")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Amount != 20 || e.Source != domain.SourceFree {
		t.Fatalf("unexpected welcome entry %+v", e)
	}
	if want := e.CreatedAt.Add(30 * 24 * time.Hour); e.ExpiresAt == nil || !e.ExpiresAt.Equal(want) {
		t.Fatalf("welcome expiry = %v, want %v", e.ExpiresAt, want)
	}

	b, err := l.Breakdown(ctx, "u1")
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if b.FreeEnergy != 20 || b.PaidEnergy != 0 || b.Total != 20 {
		t.Fatalf("unexpected breakdown %+v", b)
	}

	created, status, err = l.Register(ctx, "u1", false)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if created || status.Energy != 20 || len(store.Entries("u1")) != 1 {
		t.Fatalf("second register must be a no-op: created=%v status=%+v", created, status)
	}

	hist, err := l.History(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Type != domain.HistoryWelcome || hist[0].Amount != 20 {
		t.Fatalf("unexpected history %+v", hist)
	}
}

func TestRegisterRejectsBlankUser(t *testing.T) {
	l, _, _ := newTestLedger(t, DefaultConfig())
	if _, _, err := l.Register(context.Background(), "  ", false); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConsumeDrawsSoonestExpiryFirst(t *testing.T) {
	l, store, clock := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")

	first, err := l.AddEnergy(ctx, "u1", 10, domain.SourceFree, "")
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	clock.Advance(time.Hour)
	second, err := l.AddEnergy(ctx, "u1", 10, domain.SourceFree, "")
	if err != nil {
		t.Fatalf("add second: %v", err)
	}

	res, err := l.Consume(ctx, "u1", domain.HistoryDetailedInsight, 15)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.Energy != 5 || res.Consumed != 15 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Draws) != 2 || res.Draws[0].LotID != first.ID || res.Draws[0].Amount != 10 ||
		res.Draws[1].LotID != second.ID || res.Draws[1].Amount != 5 {
		t.Fatalf("unexpected draws %+v", res.Draws)
	}

	store.mu.Lock()
	lots := store.users["u1"].lots()
	store.mu.Unlock()
	if len(lots) != 1 || lots[0].Entry.ID != second.ID || lots[0].Remaining != 5 {
		t.Fatalf("unexpected remaining lots %+v", lots)
	}
	assertBalanceMatchesEntries(t, store, "u1")
}

func TestConsumePrefersSoonerExpiringFreeOverPaid(t *testing.T) {
	l, store, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")

	paid, err := l.AddEnergy(ctx, "u1", 10, domain.SourcePaid, "")
	if err != nil {
		t.Fatalf("add paid: %v", err)
	}
	if want := baseTime.Add(180 * 24 * time.Hour); !paid.ExpiresAt.Equal(want) {
		t.Fatalf("paid expiry = %v, want %v", paid.ExpiresAt, want)
	}
	free, err := l.AddEnergy(ctx, "u1", 4, domain.SourceFree, "")
	if err != nil {
		t.Fatalf("add free: %v", err)
	}

	res, err := l.Consume(ctx, "u1", domain.HistoryPersonalTiming, 6)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.Draws[0].LotID != free.ID || res.Draws[0].Amount != 4 || res.Draws[1].LotID != paid.ID || res.Draws[1].Amount != 2 {
		t.Fatalf("unexpected draws %+v", res.Draws)
	}
	debit := store.Entries("u1")[2]
	if debit.Amount != -6 || debit.Source != domain.SourceFree || debit.ExpiresAt != nil {
		t.Fatalf("unexpected debit %+v", debit)
	}

	b, err := l.Breakdown(ctx, "u1")
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if b.FreeEnergy != 0 || b.PaidEnergy != 8 || b.Total != 8 || !b.EarliestExpiry.Equal(*paid.ExpiresAt) {
		t.Fatalf("unexpected breakdown %+v", b)
	}
}

func TestConsumeInsufficientWritesNothing(t *testing.T) {
	l, store, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")
	if _, err := l.AddEnergy(ctx, "u1", 3, domain.SourceFree, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := len(store.Entries("u1"))

	_, err := l.Consume(ctx, "u1", domain.HistoryDetailedInsight, 5)
	var insufficient *domain.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if insufficient.Current != 3 || insufficient.Required != 5 {
		t.Fatalf("unexpected error detail %+v", insufficient)
	}
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("error must match ErrInsufficientBalance")
	}
	if got := len(store.Entries("u1")); got != before {
		t.Fatalf("entries written on refused spend: %d -> %d", before, got)
	}
	status, err := l.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Energy != 3 {
		t.Fatalf("balance changed to %d", status.Energy)
	}
}

func TestConsumeValidation(t *testing.T) {
	l, _, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")

	tests := []struct {
		name   string
		action domain.HistoryType
		cost   int
		want   error
	}{
		{name: "unknown action", action: "summon", cost: 1, want: domain.ErrValidation},
		{name: "negative cost", action: domain.HistoryPersonalTiming, cost: -1, want: domain.ErrValidation},
		{name: "over max", action: domain.HistoryPersonalTiming, cost: 101, want: domain.ErrValidation},
		{name: "default cost", action: domain.HistoryPersonalTiming, cost: 0, want: domain.ErrInsufficientBalance},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Consume(ctx, "u1", tc.action, tc.cost)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var insufficient *domain.InsufficientBalanceError
	if _, err := l.Consume(ctx, "u1", domain.HistoryDetailedInsight, 0); !errors.As(err, &insufficient) || insufficient.Required != 5 {
		t.Fatalf("default detailed_insight cost should be 5, got %v", err)
	}
}

func TestUnknownUser(t *testing.T) {
	l, _, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	if _, err := l.Status(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("status: expected ErrNotFound, got %v", err)
	}
	if _, err := l.Checkin(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("checkin: expected ErrNotFound, got %v", err)
	}
	if _, err := l.Consume(ctx, "ghost", domain.HistoryPersonalTiming, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("consume: expected ErrNotFound, got %v", err)
	}
}

func TestExpiredLotsAreNotSpendable(t *testing.T) {
	l, store, clock := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	if _, _, err := l.Register(ctx, "u1", false); err != nil {
		t.Fatalf("register: %v", err)
	}

	clock.Advance(30 * 24 * time.Hour)
	status, err := l.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Energy != 0 {
		t.Fatalf("lot expiring exactly now must not count, got %d", status.Energy)
	}
	_, err = l.Consume(ctx, "u1", domain.HistoryPersonalTiming, 3)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	// The refused spend rolls back its sweep too.
	if len(store.Entries("u1")) != 1 {
		t.Fatalf("refused spend must not persist the expiry sweep")
	}

	res, err := l.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if res.CleanedEntries != 1 || res.TotalExpired != 20 || res.Users != 1 {
		t.Fatalf("unexpected cleanup result %+v", res)
	}
	assertBalanceMatchesEntries(t, store, "u1")
	if u, _ := store.User("u1"); u.EnergyBalance != 0 {
		t.Fatalf("balance after cleanup = %d", u.EnergyBalance)
	}

	again, err := l.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if again != (CleanupResult{}) {
		t.Fatalf("second cleanup must be a no-op, got %+v", again)
	}

	hist, err := l.History(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if hist[0].Type != domain.HistoryExpired || hist[0].Amount != -20 {
		t.Fatalf("newest history should be the expiry, got %+v", hist[0])
	}
}

func TestCleanupLeavesLiveLotsAlone(t *testing.T) {
	l, store, clock := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")
	registerEmpty(t, l, "u2")

	if _, err := l.AddEnergy(ctx, "u1", 7, domain.SourceFree, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.Consume(ctx, "u1", domain.HistoryPersonalTiming, 2); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := l.AddEnergy(ctx, "u2", 9, domain.SourcePaid, ""); err != nil {
		t.Fatalf("add paid: %v", err)
	}

	clock.Advance(31 * 24 * time.Hour)
	res, err := l.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if res.CleanedEntries != 1 || res.TotalExpired != 5 || res.Users != 1 {
		t.Fatalf("unexpected cleanup result %+v", res)
	}
	for _, id := range []string{"u1", "u2"} {
		assertBalanceMatchesEntries(t, store, id)
	}
	status, err := l.Status(ctx, "u2")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Energy != 9 {
		t.Fatalf("paid lot must survive, got %d", status.Energy)
	}
}

func TestCheckinOncePerUTCDay(t *testing.T) {
	l, store, clock := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	if _, _, err := l.Register(ctx, "u1", false); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := l.Checkin(ctx, "u1")
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if res.Reward != 5 || res.Energy != 25 || res.CanCheckin || !res.CanShare {
		t.Fatalf("unexpected checkin %+v", res)
	}

	clock.Advance(13 * time.Hour) // 23:00 UTC, same day
	res, err = l.Checkin(ctx, "u1")
	if !errors.Is(err, domain.ErrAlreadyActionedToday) || !errors.Is(err, domain.ErrAlreadyCheckedInToday) {
		t.Fatalf("expected already-checked-in, got %v", err)
	}
	if res.Energy != 25 || res.Reward != 0 {
		t.Fatalf("repeat must leave balance unchanged, got %+v", res)
	}
	if len(store.Entries("u1")) != 2 {
		t.Fatalf("repeat wrote entries")
	}

	clock.Advance(2 * time.Hour) // 01:00 UTC next day
	res, err = l.Checkin(ctx, "u1")
	if err != nil {
		t.Fatalf("next-day checkin: %v", err)
	}
	if res.Energy != 30 {
		t.Fatalf("unexpected next-day energy %d", res.Energy)
	}
	assertBalanceMatchesEntries(t, store, "u1")
}

func TestShareIsIndependentOfCheckin(t *testing.T) {
	l, _, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	if _, _, err := l.Register(ctx, "u1", false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := l.Checkin(ctx, "u1"); err != nil {
		t.Fatalf("checkin: %v", err)
	}
	res, err := l.Share(ctx, "u1")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if res.Reward != 3 || res.Energy != 28 || res.CanShare || res.CanCheckin {
		t.Fatalf("unexpected share %+v", res)
	}
	if _, err := l.Share(ctx, "u1"); !errors.Is(err, domain.ErrAlreadySharedToday) {
		t.Fatalf("expected already-shared, got %v", err)
	}
}

func TestSubscriberRewardsAreDoubled(t *testing.T) {
	l, _, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "plain")
	registerEmpty(t, l, "member")
	if _, err := l.SetSubscriber(ctx, "member", true); err != nil {
		t.Fatalf("set subscriber: %v", err)
	}

	plain, err := l.Checkin(ctx, "plain")
	if err != nil {
		t.Fatalf("plain checkin: %v", err)
	}
	member, err := l.Checkin(ctx, "member")
	if err != nil {
		t.Fatalf("member checkin: %v", err)
	}
	if plain.Reward != 5 || member.Reward != 10 {
		t.Fatalf("rewards plain=%d member=%d", plain.Reward, member.Reward)
	}
}

func TestCanActToday(t *testing.T) {
	now := time.Date(2024, 3, 9, 0, 30, 0, 0, time.UTC)
	yesterday := time.Date(2024, 3, 8, 23, 59, 59, 0, time.UTC)
	midnight := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		last *time.Time
		want bool
	}{
		{name: "never", last: nil, want: true},
		{name: "yesterday", last: &yesterday, want: true},
		{name: "midnight", last: &midnight, want: false},
		{name: "now", last: &now, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanActToday(tc.last, now); got != tc.want {
				t.Fatalf("CanActToday = %v, want %v", got, tc.want)
			}
		})
	}
	// Offsets are normalised to UTC before comparing days.
	tokyo := time.FixedZone("JST", 9*3600)
	local := time.Date(2024, 3, 9, 8, 0, 0, 0, tokyo) // 2024-03-08 23:00 UTC
	if !CanActToday(&local, now) {
		t.Fatalf("08:00 JST on the 9th is still the 8th in UTC")
	}
}

func TestConcurrentConsumeNeverOverspends(t *testing.T) {
	l, store, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")
	if _, err := l.AddEnergy(ctx, "u1", 20, domain.SourceFree, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Consume(ctx, "u1", domain.HistoryPersonalTiming, 3)
			switch {
			case err == nil:
				mu.Lock()
				success++
				mu.Unlock()
			case !errors.Is(err, domain.ErrInsufficientBalance):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 6 {
		t.Fatalf("expected 6 successful spends of 3 from 20, got %d", success)
	}
	status, err := l.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Energy != 2 {
		t.Fatalf("expected 2 left, got %d", status.Energy)
	}
	assertBalanceMatchesEntries(t, store, "u1")
}

func TestConcurrentCheckinGrantsOnce(t *testing.T) {
	l, _, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Checkin(ctx, "u1"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 1 {
		t.Fatalf("expected exactly one grant, got %d", granted)
	}
}

// failingHistoryStore wraps MemoryStore with a transaction whose history
// writes always fail.
type failingHistoryStore struct {
	*MemoryStore
}

type failingHistoryTx struct {
	domain.LedgerTx
}

func (failingHistoryTx) AppendHistory(context.Context, domain.HistoryRecord) error {
	return fmt.Errorf("history table unavailable")
}

func (s failingHistoryStore) WithUser(ctx context.Context, userID string, fn func(tx domain.LedgerTx) error) error {
	return s.MemoryStore.WithUser(ctx, userID, func(tx domain.LedgerTx) error {
		return fn(failingHistoryTx{tx})
	})
}

func TestHistoryFailureDoesNotBlockBalanceChange(t *testing.T) {
	mem := NewMemoryStore()
	l := New(failingHistoryStore{mem}, WithClock(newFakeClock(baseTime).Now))
	ctx := context.Background()
	if _, _, err := l.Register(ctx, "u1", false); err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := l.Checkin(ctx, "u1")
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if res.Energy != 25 {
		t.Fatalf("balance = %d, want 25", res.Energy)
	}
	hist, err := l.History(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Type != domain.HistoryWelcome {
		t.Fatalf("only the welcome record should exist, got %+v", hist)
	}
	assertBalanceMatchesEntries(t, mem, "u1")
}

func TestHistoryNewestFirstAndLimited(t *testing.T) {
	l, _, clock := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")
	for i := 0; i < 5; i++ {
		clock.Advance(time.Minute)
		if _, err := l.AddEnergy(ctx, "u1", i+1, domain.SourceFree, domain.HistoryGrant); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	hist, err := l.History(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 records, got %d", len(hist))
	}
	for i, want := range []int{5, 4, 3} {
		if hist[i].Amount != want {
			t.Fatalf("record %d amount = %d, want %d", i, hist[i].Amount, want)
		}
	}
}

func TestAddEnergyValidation(t *testing.T) {
	l, _, _ := newTestLedger(t, DefaultConfig())
	ctx := context.Background()
	registerEmpty(t, l, "u1")
	if _, err := l.AddEnergy(ctx, "u1", 0, domain.SourceFree, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero amount: expected validation error, got %v", err)
	}
	if _, err := l.AddEnergy(ctx, "u1", 5, "gift", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad source: expected validation error, got %v", err)
	}
}
