// Command migrate applies or rolls back the embedded schema.
//
//	migrate up
//	migrate down [-steps N]
//	migrate version
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"dreamcatcher/internal/infra"
	"dreamcatcher/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		exitWithError(errors.New("usage: migrate up | down [-steps N] | version"))
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	steps := fs.Int("steps", 1, "migrations to roll back")
	_ = fs.Parse(os.Args[2:])

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	logger := infra.NewLogger(os.Getenv("APP_ENV"), "migrate")
	m, err := migrations.New(dbURL, logger)
	if err != nil {
		exitWithError(err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn().Err(err).Msg("migrate: close failed")
		}
	}()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down(*steps)
	case "version":
		var (
			v     uint
			dirty bool
		)
		if v, dirty, err = m.Version(); err == nil {
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		exitWithError(err)
	}
	logger.Info().Str("command", cmd).Msg("migrate: done")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
