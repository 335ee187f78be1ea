package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/auditflow/auditflow/internal/config"
	"github.com/auditflow/auditflow/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	mode := flag.String("mode", "up", "migration mode: up, down or status")
	steps := flag.Int("steps", 1, "number of migrations to revert in down mode (0 reverts all)")
	dir := flag.String("dir", cfg.Database.MigrationsPath, "directory holding NNN_name.up.sql / .down.sql files")
	flag.Parse()

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "auditflow-migrate",
	})
	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = cfg.GetDatabaseURL()
	}

	if err := run(ctx, log, dsn, *dir, strings.ToLower(*mode), *steps); err != nil {
		log.Error(ctx, "Migration failed", err, map[string]interface{}{"mode": *mode})
		os.Exit(1)
	}
}

func run(ctx context.Context, log logger.Logger, dsn, dir, mode string, steps int) error {
	migrations, err := loadMigrations(dir)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m := &Migrator{db: db, migrations: migrations}
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	report := func(verb string) func(migration) {
		return func(mg migration) {
			log.Info(ctx, verb+" migration", map[string]interface{}{"version": mg.version, "name": mg.name})
		}
	}

	switch mode {
	case "up":
		if err := m.Up(ctx, report("Applied")); err != nil {
			return err
		}
	case "down":
		if err := m.Down(ctx, steps, report("Reverted")); err != nil {
			return err
		}
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			applied := "pending"
			if st.AppliedAt != nil {
				applied = st.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%03d  %-32s %s\n", st.Version, st.Name, applied)
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	log.Info(ctx, "Migration completed", map[string]interface{}{"mode": mode})
	return nil
}
