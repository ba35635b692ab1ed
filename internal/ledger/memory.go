package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dreamcatcher/internal/domain"
)

// MemoryStore is an in-process domain.LedgerStore. A single mutex
// serialises every transaction; each transaction works on a copy of the
// user's state that replaces the original only when the callback succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*memoryState
}

type memoryState struct {
	user    domain.User
	entries []domain.LedgerEntry
	draws   []domain.LotDraw
	history []domain.HistoryRecord
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		user:    s.user,
		entries: append([]domain.LedgerEntry(nil), s.entries...),
		draws:   append([]domain.LotDraw(nil), s.draws...),
		history: append([]domain.HistoryRecord(nil), s.history...),
	}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*memoryState)}
}

func (s *MemoryStore) Register(ctx context.Context, user domain.User, fn func(tx domain.LedgerTx) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	state := &memoryState{user: user}
	if fn != nil {
		if err := fn(&memoryTx{state: state}); err != nil {
			return false, err
		}
	}
	s.users[user.ID] = state
	return true, nil
}

func (s *MemoryStore) WithUser(ctx context.Context, userID string, fn func(tx domain.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	current, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	staged := current.clone()
	if err := fn(&memoryTx{state: staged}); err != nil {
		return err
	}
	s.users[userID] = staged
	return nil
}

func (s *MemoryStore) UsersWithLapsedLots(ctx context.Context, t time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, state := range s.users {
		for _, lot := range state.lots() {
			if lot.LapsedAt(t) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Entries returns a copy of the user's ledger entries in insertion order.
func (s *MemoryStore) Entries(userID string) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		return nil
	}
	return append([]domain.LedgerEntry(nil), state.entries...)
}

// User returns the stored user.
func (s *MemoryStore) User(userID string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		return domain.User{}, false
	}
	return state.user, true
}

func (s *memoryState) lots() []domain.Lot {
	drawn := make(map[string]int, len(s.draws))
	for _, d := range s.draws {
		drawn[d.LotID] += d.Amount
	}
	var lots []domain.Lot
	for _, e := range s.entries {
		if !e.IsCredit() {
			continue
		}
		if remaining := e.Amount - drawn[e.ID]; remaining > 0 {
			lots = append(lots, domain.Lot{Entry: e, Remaining: remaining})
		}
	}
	SortLots(lots)
	return lots
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) User() domain.User {
	return t.state.user
}

func (t *memoryTx) Lots(ctx context.Context) ([]domain.Lot, error) {
	return t.state.lots(), nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, entry domain.LedgerEntry, draws []domain.LotDraw) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.UserID != t.state.user.ID {
		return fmt.Errorf("ledger entry %s belongs to %s, not %s", entry.ID, entry.UserID, t.state.user.ID)
	}
	total := 0
	for _, d := range draws {
		if d.DebitID != entry.ID || d.Amount <= 0 {
			return fmt.Errorf("invalid draw %+v for entry %s", d, entry.ID)
		}
		total += d.Amount
	}
	if len(draws) > 0 && total != -entry.Amount {
		return fmt.Errorf("draws for entry %s total %d, debit is %d", entry.ID, total, entry.Amount)
	}
	t.state.entries = append(t.state.entries, entry)
	t.state.draws = append(t.state.draws, draws...)
	return nil
}

func (t *memoryTx) UpdateUser(ctx context.Context, user domain.User) error {
	if user.ID != t.state.user.ID {
		return fmt.Errorf("cannot update user %s inside transaction for %s", user.ID, t.state.user.ID)
	}
	if user.EnergyBalance < 0 {
		return fmt.Errorf("negative balance for user %s", user.ID)
	}
	t.state.user = user
	return nil
}

func (t *memoryTx) AppendHistory(ctx context.Context, rec domain.HistoryRecord) error {
	if rec.Type == domain.HistoryWelcome {
		for _, h := range t.state.history {
			if h.Type == domain.HistoryWelcome {
				return fmt.Errorf("welcome history for %s already recorded", rec.UserID)
			}
		}
	}
	t.state.history = append(t.state.history, rec)
	return nil
}

func (t *memoryTx) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	n := len(t.state.history)
	out := make([]domain.HistoryRecord, 0, min(n, limit))
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.state.history[i])
	}
	return out, nil
}

var _ domain.LedgerStore = (*MemoryStore)(nil)
