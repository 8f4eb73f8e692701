// Command migrate applies the embedded schema migrations. The target
// database comes from -dsn, then RELIEF_DB_DSN, then the same database
// settings the server reads.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/joho/godotenv/autoload"

	"github.com/JaimeStill/relief/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "RELIEF_DB_DSN"

type options struct {
	dsn     string
	up      bool
	down    bool
	steps   int
	version bool
	force   int
	forced  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.dsn, "dsn", "", "database URL (default $"+envDSN+" or RELIEF_DB_* settings)")
	flag.BoolVar(&opts.up, "up", false, "apply all pending migrations")
	flag.BoolVar(&opts.down, "down", false, "revert all migrations")
	flag.IntVar(&opts.steps, "steps", 0, "apply N migrations, or revert -N")
	flag.BoolVar(&opts.version, "version", false, "print the current schema version")
	flag.IntVar(&opts.force, "force", -1, "mark version N clean after a failed migration")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		opts.forced = opts.forced || f.Name == "force"
	})

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts options) error {
	dsn, err := resolveDSN(opts.dsn)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch {
	case opts.version:
		v, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			fmt.Println("version: none")
		case err != nil:
			return fmt.Errorf("read version: %w", err)
		default:
			fmt.Printf("version: %d, dirty: %v\n", v, dirty)
		}
		return nil
	case opts.forced:
		if err := m.Force(opts.force); err != nil {
			return fmt.Errorf("force version %d: %w", opts.force, err)
		}
		fmt.Printf("forced to version %d\n", opts.force)
		return nil
	case opts.up:
		return report(m.Up(), "migrations applied")
	case opts.down:
		return report(m.Down(), "migrations reverted")
	case opts.steps != 0:
		return report(m.Steps(opts.steps), fmt.Sprintf("applied %d migration steps", opts.steps))
	}

	fmt.Println("usage: migrate [-dsn <url>] [-up|-down|-steps N|-version|-force N]")
	flag.PrintDefaults()
	return nil
}

func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}
	db, err := config.LoadDatabase()
	if err != nil {
		return "", fmt.Errorf("resolve database: %w", err)
	}
	return db.URL(), nil
}

func report(err error, done string) error {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("no change")
	case err != nil:
		return fmt.Errorf("migration failed: %w", err)
	default:
		fmt.Println(done)
	}
	return nil
}
