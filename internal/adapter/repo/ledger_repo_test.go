package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"dreamcatcher/internal/domain"
	"dreamcatcher/internal/infra"
	"dreamcatcher/internal/sqlinline"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type sliceRows struct {
	data [][]any
	idx  int
}

func (r *sliceRows) Close()                                       {}
func (r *sliceRows) Err() error                                   { return nil }
func (r *sliceRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *sliceRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *sliceRows) Values() ([]any, error)                       { return nil, fmt.Errorf("values not supported in test rows") }
func (r *sliceRows) RawValues() [][]byte                          { return nil }
func (r *sliceRows) Conn() *pgx.Conn                              { return nil }

func (r *sliceRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(row), len(dest))
	}
	for i, v := range row {
		if err := assign(dest[i], v); err != nil {
			return err
		}
	}
	return nil
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		*d = v.(string)
	case *int:
		*d = v.(int)
	case *bool:
		*d = v.(bool)
	case *time.Time:
		*d = v.(time.Time)
	case **time.Time:
		if v == nil {
			*d = nil
		} else {
			t := v.(time.Time)
			*d = &t
		}
	case *[]byte:
		*d = v.([]byte)
	default:
		return fmt.Errorf("unsupported scan target %T", dest)
	}
	return nil
}

type execCall struct {
	query string
	args  []any
}

// stubDB records statements and answers them from canned responses keyed by
// the sqlinline constant.
type stubDB struct {
	rows       map[string]func(args []any) pgx.Row
	queries    map[string]func(args []any) pgx.Rows
	execErr    map[string]error
	execs      []execCall
	savepoints int
	committed  bool
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if err := s.execErr[query]; err != nil {
		return pgconn.CommandTag{}, err
	}
	s.execs = append(s.execs, execCall{query: query, args: args})
	rows := 1
	if query == sqlinline.QInsertLotDraws {
		rows = len(args[1].([]string))
	}
	return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", rows)), nil
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if fn, ok := s.rows[query]; ok {
		return fn(args)
	}
	return simpleRow{}
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if fn, ok := s.queries[query]; ok {
		return fn(args), nil
	}
	return &sliceRows{}, nil
}

func (s *stubDB) InTx(ctx context.Context, fn func(infra.TxExecutor) error) error {
	if err := fn(s); err != nil {
		return err
	}
	s.committed = true
	return nil
}

func (s *stubDB) Savepoint(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	s.savepoints++
	return fn(s)
}

func userRow(id string, balance int) func([]any) pgx.Row {
	return func([]any) pgx.Row {
		return simpleRow{scan: func(dest ...any) error {
			now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
			*dest[0].(*string) = id
			*dest[1].(*int) = balance
			*dest[2].(*bool) = false
			*dest[3].(**time.Time) = nil
			*dest[4].(**time.Time) = nil
			*dest[5].(*time.Time) = now
			*dest[6].(*time.Time) = now
			return nil
		}}
	}
}

func TestRegisterExistingUserSkipsCallback(t *testing.T) {
	db := &stubDB{}
	store := NewLedgerStore(db, zerolog.Nop())
	called := false
	created, err := store.Register(context.Background(), domain.User{ID: "u1"}, func(domain.LedgerTx) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created || called {
		t.Fatalf("existing user must not be created (created=%v called=%v)", created, called)
	}
}

func TestRegisterNewUserRunsCallback(t *testing.T) {
	db := &stubDB{rows: map[string]func([]any) pgx.Row{
		sqlinline.QInsertUser: func(args []any) pgx.Row {
			return simpleRow{scan: func(dest ...any) error {
				*dest[0].(*string) = args[0].(string)
				return nil
			}}
		},
	}}
	store := NewLedgerStore(db, zerolog.Nop())
	var seen string
	created, err := store.Register(context.Background(), domain.User{ID: "u1"}, func(tx domain.LedgerTx) error {
		seen = tx.User().ID
		return nil
	})
	if err != nil || !created || seen != "u1" || !db.committed {
		t.Fatalf("unexpected register outcome created=%v seen=%q err=%v", created, seen, err)
	}
}

func TestWithUserMissing(t *testing.T) {
	store := NewLedgerStore(&stubDB{}, zerolog.Nop())
	err := store.WithUser(context.Background(), "ghost", func(domain.LedgerTx) error {
		t.Fatalf("callback must not run")
		return nil
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertDebitWritesDraws(t *testing.T) {
	db := &stubDB{rows: map[string]func([]any) pgx.Row{sqlinline.QLockUser: userRow("u1", 10)}}
	store := NewLedgerStore(db, zerolog.Nop())
	debit := domain.LedgerEntry{ID: "d1", UserID: "u1", Amount: -7, Source: domain.SourceFree, CreatedAt: time.Now()}
	draws := []domain.LotDraw{{DebitID: "d1", LotID: "l1", Amount: 5}, {DebitID: "d1", LotID: "l2", Amount: 2}}

	err := store.WithUser(context.Background(), "u1", func(tx domain.LedgerTx) error {
		return tx.InsertEntry(context.Background(), debit, draws)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(db.execs) != 2 || db.execs[1].query != sqlinline.QInsertLotDraws {
		t.Fatalf("expected entry and draws inserts, got %d statements", len(db.execs))
	}
	ids := db.execs[1].args[1].([]string)
	amounts := db.execs[1].args[2].([]int32)
	if strings.Join(ids, ",") != "l1,l2" || amounts[0] != 5 || amounts[1] != 2 {
		t.Fatalf("unexpected draw args %v %v", ids, amounts)
	}
}

func TestInsertEntryRejectsInvalidRows(t *testing.T) {
	db := &stubDB{rows: map[string]func([]any) pgx.Row{sqlinline.QLockUser: userRow("u1", 10)}}
	store := NewLedgerStore(db, zerolog.Nop())
	err := store.WithUser(context.Background(), "u1", func(tx domain.LedgerTx) error {
		return tx.InsertEntry(context.Background(), domain.LedgerEntry{ID: "c1", UserID: "u1", Amount: 5}, nil)
	})
	if err == nil || len(db.execs) != 0 {
		t.Fatalf("credit without expiry must be rejected before writing, err=%v", err)
	}
}

func TestAppendHistoryUsesSavepoint(t *testing.T) {
	db := &stubDB{
		rows:    map[string]func([]any) pgx.Row{sqlinline.QLockUser: userRow("u1", 20)},
		execErr: map[string]error{sqlinline.QInsertHistory: &pgconn.PgError{Code: "23505", ConstraintName: "energy_history_welcome_once"}},
	}
	store := NewLedgerStore(db, zerolog.Nop())
	var histErr error
	err := store.WithUser(context.Background(), "u1", func(tx domain.LedgerTx) error {
		histErr = tx.AppendHistory(context.Background(), domain.HistoryRecord{ID: "h1", UserID: "u1", Type: domain.HistoryWelcome, Amount: 20})
		return nil
	})
	if err != nil {
		t.Fatalf("outer transaction must survive: %v", err)
	}
	if db.savepoints != 1 {
		t.Fatalf("history must run inside a savepoint")
	}
	if !infra.IsUniqueViolation(histErr, "energy_history_welcome_once") {
		t.Fatalf("expected welcome unique violation, got %v", histErr)
	}
}

func TestLotsAndHistoryScan(t *testing.T) {
	exp := time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	db := &stubDB{
		rows: map[string]func([]any) pgx.Row{sqlinline.QLockUser: userRow("u1", 12)},
		queries: map[string]func([]any) pgx.Rows{
			sqlinline.QListOpenLots: func([]any) pgx.Rows {
				return &sliceRows{data: [][]any{{"l1", "u1", 20, "free", exp, created, 12}}}
			},
			sqlinline.QListHistory: func([]any) pgx.Rows {
				return &sliceRows{data: [][]any{{"h1", "u1", "welcome", 20, "Welcome energy", []byte(`{"source":"free"}`), created}}}
			},
		},
	}
	store := NewLedgerStore(db, zerolog.Nop())
	err := store.WithUser(context.Background(), "u1", func(tx domain.LedgerTx) error {
		lots, err := tx.Lots(context.Background())
		if err != nil {
			return err
		}
		if len(lots) != 1 || lots[0].Remaining != 12 || lots[0].Entry.Source != domain.SourceFree || !lots[0].Entry.ExpiresAt.Equal(exp) {
			t.Fatalf("unexpected lots %+v", lots)
		}
		hist, err := tx.History(context.Background(), 10)
		if err != nil {
			return err
		}
		if len(hist) != 1 || hist[0].Type != domain.HistoryWelcome || hist[0].Metadata["source"] != "free" {
			t.Fatalf("unexpected history %+v", hist)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with user: %v", err)
	}
}
