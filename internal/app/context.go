package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/migrate"
	"taskboard/internal/notify"
)

// Open connects to the configured store, applies migrations, seeds the sample
// task into an empty store when enabled, and wires the engine. Callers close
// the returned *sql.DB.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (engine.Engine, *sql.DB, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	version, err := checkSchema(ctx, conn)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	logger.Printf("schema at version %d in %s", version, cfg.Database.Path)
	e := engine.New(conn, GateFromConfig(cfg), notify.Webhook{Timeout: cfg.WebhookTimeout(), Logger: logger})
	if cfg.Database.EnableSampleData {
		seeded, err := e.Repo.SeedSampleData(ctx, e.SampleTask())
		if err != nil {
			conn.Close()
			return engine.Engine{}, nil, fmt.Errorf("seed sample data: %w", err)
		}
		if seeded {
			logger.Printf("seeded sample task into %s", cfg.Database.Path)
		}
	}
	return e, conn, nil
}

// GateFromConfig builds the password gate from the security section.
func GateFromConfig(cfg *config.Config) auth.Gate {
	return auth.Gate{
		Enabled:      cfg.Security.Enabled,
		Password:     cfg.Security.Password,
		PasswordHash: cfg.Security.PasswordHash,
	}
}

// checkSchema reports the applied schema version and fails when the store is
// behind or ahead of the migrations compiled into the binary.
func checkSchema(ctx context.Context, conn *sql.DB) (int, error) {
	latest, err := migrate.Latest()
	if err != nil {
		return 0, fmt.Errorf("load migrations: %w", err)
	}
	current, err := migrate.CurrentVersion(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if current != latest {
		return current, fmt.Errorf("schema version %d, binary expects %d", current, latest)
	}
	return current, nil
}
