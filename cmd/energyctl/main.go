// Command energyctl is the operator tool for energy accounts: grants,
// subscriber changes, status checks and balance audits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"dreamcatcher/internal/adapter/repo"
	"dreamcatcher/internal/domain"
	"dreamcatcher/internal/infra"
	"dreamcatcher/internal/ledger"
)

const usage = `usage: energyctl <command> [flags]

commands:
  status      -user ID                 show live energy and daily flags
  grant       -user ID -amount N       credit a lot (-source paid|free)
  subscriber  -user ID -on|-off        change the subscriber flag
  audit       -user ID                 compare cached balance with entries
  cleanup                              sweep every lapsed lot now`

// EntrySummer sums a user's ledger entries straight from storage.
type EntrySummer interface {
	EntrySum(ctx context.Context, userID string) (int, error)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		exitWithError(errors.New(usage))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "energyctl")
	store := repo.NewLedgerStore(infra.NewSQLRunner(pool, logger), logger)
	l := ledger.New(store, ledger.WithLogger(logger))

	if err := run(ctx, os.Args[1:], l, store, os.Stdout); err != nil {
		exitWithError(err)
	}
}

func run(ctx context.Context, args []string, l *ledger.Ledger, sums EntrySummer, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		userFlag   string
		amountFlag int
		sourceFlag string
		onFlag     bool
		offFlag    bool
	)
	fs.StringVar(&userFlag, "user", "", "user ID")
	switch cmd {
	case "grant":
		fs.IntVar(&amountFlag, "amount", 0, "energy to credit")
		fs.StringVar(&sourceFlag, "source", string(domain.SourcePaid), "lot source (paid, free)")
	case "subscriber":
		fs.BoolVar(&onFlag, "on", false, "mark as subscriber")
		fs.BoolVar(&offFlag, "off", false, "clear subscriber flag")
	case "status", "audit", "cleanup":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	userID := strings.TrimSpace(userFlag)
	if cmd != "cleanup" && userID == "" {
		return fmt.Errorf("%s: -user is required", cmd)
	}

	switch cmd {
	case "status":
		s, err := l.Status(ctx, userID)
		if err != nil {
			return fmt.Errorf("load status: %w", err)
		}
		printStatus(out, userID, s)

	case "grant":
		source, err := domain.ParseEnergySource(strings.ToLower(strings.TrimSpace(sourceFlag)))
		if err != nil {
			return err
		}
		entry, err := l.AddEnergy(ctx, userID, amountFlag, source, "")
		if err != nil {
			return fmt.Errorf("grant energy: %w", err)
		}
		fmt.Fprintf(out, "Granted %d %s energy to %s (entry %s", amountFlag, source, userID, entry.ID)
		if entry.ExpiresAt != nil {
			fmt.Fprintf(out, ", expires %s", entry.ExpiresAt.UTC().Format(time.RFC3339))
		}
		fmt.Fprintln(out, ")")

	case "subscriber":
		if onFlag == offFlag {
			return errors.New("subscriber: exactly one of -on or -off is required")
		}
		s, err := l.SetSubscriber(ctx, userID, onFlag)
		if err != nil {
			return fmt.Errorf("update subscriber: %w", err)
		}
		printStatus(out, userID, s)

	case "audit":
		a, err := l.Audit(ctx, userID)
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		sum, err := sums.EntrySum(ctx, userID)
		if err != nil {
			return fmt.Errorf("audit: %w", err)
		}
		fmt.Fprintf(out, "cached_balance=%d\nentry_sum=%d\nlot_total=%d\nlive=%d\nlapsed_unswept=%d\n",
			a.CachedBalance, sum, a.LotTotal, a.LiveTotal, a.LapsedTotal)
		if !a.Consistent() || sum != a.CachedBalance {
			return fmt.Errorf("audit: user %s is inconsistent", userID)
		}
		fmt.Fprintln(out, "OK")

	case "cleanup":
		res, err := l.CleanupExpired(ctx)
		fmt.Fprintf(out, "users=%d entries=%d amount=%d\n", res.Users, res.CleanedEntries, res.TotalExpired)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	return nil
}

func printStatus(out io.Writer, userID string, s ledger.Status) {
	fmt.Fprintf(out, "User %s\nenergy=%d\nsubscriber=%t\ncan_checkin=%t\ncan_share=%t\n",
		userID, s.Energy, s.IsSubscriber, s.CanCheckin, s.CanShare)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
