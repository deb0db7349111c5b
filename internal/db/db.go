package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"github.com/torfstack/sideload/internal/logging"
	_ "modernc.org/sqlite"
)

var (
	dbName = "sideload.sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Database struct {
	db *sql.DB
}

// New opens (and migrates) the state database inside dir.
func New(ctx context.Context, dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory '%s': %w", dir, err)
	}
	fp := filepath.Join(dir, dbName)
	sqlDb, err := sql.Open("sqlite", fp+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	sqlDb.SetMaxOpenConns(1)
	d := &Database{sqlDb}
	err = d.runMigrations(ctx)
	if err != nil {
		_ = sqlDb.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}
	return d, nil
}

func (d *Database) runMigrations(ctx context.Context) error {
	err := goose.SetDialect("sqlite")
	if err != nil {
		return fmt.Errorf("could not set dialect 'sqlite': %w", err)
	}
	goose.SetLogger(logging.GooseLogger{})
	goose.SetBaseFS(embedMigrations)

	if err = goose.UpContext(ctx, d.db, "migrations"); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *Database) Queries() *Queries {
	return &Queries{d.db}
}
