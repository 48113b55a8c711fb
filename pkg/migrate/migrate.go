package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedded embed.FS

const (
	// SourceDir is where new migrations are written during development.
	SourceDir   = "pkg/migrate/migrations"
	embeddedDir = "migrations"
	dialect     = "postgres"
)

// Migrator runs goose against the storefront schema. By default it reads the
// migrations compiled into the binary, so cmd/api and cmd/migrate apply the
// same set regardless of working directory.
type Migrator struct {
	db   *sql.DB
	fsys fs.FS
	dir  string
}

// New returns a Migrator over the embedded migrations, or over dir on disk
// when dir is set.
func New(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	m := &Migrator{db: db, fsys: embedded, dir: embeddedDir}
	if dir != "" {
		m.fsys, m.dir = os.DirFS(dir), "."
	}
	if _, err := scan(m.fsys, m.dir); err != nil {
		return nil, err
	}
	return m, nil
}

// goose keeps its dialect and base FS in package state.
func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.fsys)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

func (m *Migrator) Up(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration only.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Status prints the applied state of every migration to stdout.
func (m *Migrator) Status(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

// To migrates up or down until target is the current schema version. The
// target must name an existing migration.
func (m *Migrator) To(ctx context.Context, target int64) error {
	files, err := scan(m.fsys, m.dir)
	if err != nil {
		return err
	}
	if !hasVersion(files, target) {
		return fmt.Errorf("no migration with version %d", target)
	}
	if err := m.prepare(); err != nil {
		return err
	}

	current, err := goose.GetDBVersion(m.db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		err = goose.UpToContext(ctx, m.db, m.dir, target)
	default:
		err = goose.DownToContext(ctx, m.db, m.dir, target)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}
