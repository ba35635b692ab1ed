package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"dreamcatcher/internal/domain"
	"dreamcatcher/internal/infra"
	"dreamcatcher/internal/sqlinline"
)

// LedgerStorePG implements domain.LedgerStore on PostgreSQL. Each unit of
// work is one read-committed transaction holding the user row FOR UPDATE.
type LedgerStorePG struct {
	db     infra.TxRunner
	logger zerolog.Logger
}

// NewLedgerStore creates a LedgerStorePG.
func NewLedgerStore(db infra.TxRunner, logger zerolog.Logger) *LedgerStorePG {
	return &LedgerStorePG{db: db, logger: logger}
}

func (s *LedgerStorePG) Register(ctx context.Context, user domain.User, fn func(tx domain.LedgerTx) error) (bool, error) {
	created := false
	err := s.db.InTx(ctx, func(tx infra.TxExecutor) error {
		var id string
		err := tx.QueryRow(ctx, sqlinline.QInsertUser, user.ID, user.IsSubscriber, user.CreatedAt).Scan(&id)
		if infra.IsNoRows(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		// The fresh row is already locked by this transaction.
		created = true
		if fn == nil {
			return nil
		}
		return fn(&pgLedgerTx{exec: tx, user: user})
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *LedgerStorePG) WithUser(ctx context.Context, userID string, fn func(tx domain.LedgerTx) error) error {
	return s.db.InTx(ctx, func(tx infra.TxExecutor) error {
		user, err := scanUser(tx.QueryRow(ctx, sqlinline.QLockUser, userID))
		if infra.IsNoRows(err) {
			return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		return fn(&pgLedgerTx{exec: tx, user: user})
	})
}

func (s *LedgerStorePG) UsersWithLapsedLots(ctx context.Context, t time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, sqlinline.QUsersWithLapsedLots, t)
	if err != nil {
		return nil, fmt.Errorf("query lapsed lots: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// EntrySum returns the sum of every ledger entry of the user. It must equal
// the cached balance.
func (s *LedgerStorePG) EntrySum(ctx context.Context, userID string) (int, error) {
	var sum int
	if err := s.db.QueryRow(ctx, sqlinline.QSumLedgerEntries, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum entries: %w", err)
	}
	return sum, nil
}

type pgLedgerTx struct {
	exec infra.TxExecutor
	user domain.User
}

func (t *pgLedgerTx) User() domain.User {
	return t.user
}

func (t *pgLedgerTx) Lots(ctx context.Context) ([]domain.Lot, error) {
	rows, err := t.exec.Query(ctx, sqlinline.QListOpenLots, t.user.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []domain.Lot
	for rows.Next() {
		var (
			lot    domain.Lot
			source string
		)
		if err := rows.Scan(
			&lot.Entry.ID,
			&lot.Entry.UserID,
			&lot.Entry.Amount,
			&source,
			&lot.Entry.ExpiresAt,
			&lot.Entry.CreatedAt,
			&lot.Remaining,
		); err != nil {
			return nil, err
		}
		lot.Entry.Source = domain.EnergySource(source)
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (t *pgLedgerTx) InsertEntry(ctx context.Context, entry domain.LedgerEntry, draws []domain.LotDraw) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if _, err := t.exec.Exec(ctx, sqlinline.QInsertLedgerEntry,
		entry.ID,
		entry.UserID,
		entry.Amount,
		string(entry.Source),
		entry.ExpiresAt,
		entry.CreatedAt,
	); err != nil {
		return err
	}
	if len(draws) == 0 {
		return nil
	}
	lotIDs := make([]string, len(draws))
	amounts := make([]int32, len(draws))
	for i, d := range draws {
		if d.DebitID != entry.ID {
			return fmt.Errorf("draw for %s attached to debit %s", d.DebitID, entry.ID)
		}
		lotIDs[i] = d.LotID
		amounts[i] = int32(d.Amount)
	}
	tag, err := t.exec.Exec(ctx, sqlinline.QInsertLotDraws, entry.ID, lotIDs, amounts)
	if err != nil {
		return fmt.Errorf("insert lot draws: %w", err)
	}
	if tag.RowsAffected() != int64(len(draws)) {
		return fmt.Errorf("insert lot draws: wrote %d of %d", tag.RowsAffected(), len(draws))
	}
	return nil
}

func (t *pgLedgerTx) UpdateUser(ctx context.Context, user domain.User) error {
	if user.ID != t.user.ID {
		return fmt.Errorf("cannot update user %s inside transaction for %s", user.ID, t.user.ID)
	}
	tag, err := t.exec.Exec(ctx, sqlinline.QUpdateUser,
		user.ID,
		user.EnergyBalance,
		user.IsSubscriber,
		user.LastCheckin,
		user.LastShare,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrNotFound)
	}
	t.user = user
	return nil
}

// AppendHistory writes inside a savepoint so a failed insert, such as a
// second welcome record, does not abort the balance change around it.
func (t *pgLedgerTx) AppendHistory(ctx context.Context, rec domain.HistoryRecord) error {
	var metadata []byte
	if rec.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(rec.Metadata); err != nil {
			return fmt.Errorf("encode history metadata: %w", err)
		}
	}
	return t.exec.Savepoint(ctx, func(sp infra.SQLExecutor) error {
		_, err := sp.Exec(ctx, sqlinline.QInsertHistory,
			rec.ID,
			rec.UserID,
			string(rec.Type),
			rec.Amount,
			rec.Description,
			metadata,
			rec.CreatedAt,
		)
		if infra.IsUniqueViolation(err, "energy_history_welcome_once") {
			return fmt.Errorf("welcome history for %s already recorded: %w", rec.UserID, err)
		}
		return err
	})
}

func (t *pgLedgerTx) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	rows, err := t.exec.Query(ctx, sqlinline.QListHistory, t.user.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.EnergyBalance,
		&u.IsSubscriber,
		&u.LastCheckin,
		&u.LastShare,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func scanHistory(row pgx.Row) (domain.HistoryRecord, error) {
	var (
		rec      domain.HistoryRecord
		kind     string
		metadata []byte
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &kind, &rec.Amount, &rec.Description, &metadata, &rec.CreatedAt); err != nil {
		return domain.HistoryRecord{}, err
	}
	rec.Type = domain.HistoryType(kind)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return domain.HistoryRecord{}, fmt.Errorf("decode history metadata: %w", err)
		}
	}
	return rec, nil
}

var _ domain.LedgerStore = (*LedgerStorePG)(nil)
