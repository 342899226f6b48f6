// Package migrate applies the settlement schema with goose. Binaries use the
// embedded migrations; the migrate command can point at a directory instead.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded exposes the compiled-in settlement schema migrations.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrations subtree: %v", err))
	}
	return sub
}

// Source resolves dir to a filesystem; an empty dir selects the embedded set.
func Source(dir string) fs.FS {
	if dir == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Command is a migrate operation.
type Command string

const (
	CommandUp      Command = "up"
	CommandDown    Command = "down"
	CommandStatus  Command = "status"
	CommandVersion Command = "version"
)

// Result is one migration applied or rolled back, or one status line.
type Result struct {
	Version    int64
	Path       string
	Direction  string
	State      string
	DurationMS int64
}

// Migrator runs goose against one database and one set of migrations.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB, fsys fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Run executes cmd. CommandVersion migrates up or down to target, given as
// the YYYYMMDDHHMMSS version prefix.
func (m *Migrator) Run(ctx context.Context, cmd Command, target string) ([]Result, error) {
	switch cmd {
	case CommandUp:
		return fromResults(m.provider.Up(ctx))
	case CommandDown:
		res, err := m.provider.Down(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return fromResults([]*goose.MigrationResult{res}, nil)
	case CommandStatus:
		return m.status(ctx)
	case CommandVersion:
		return m.migrateTo(ctx, target)
	default:
		return nil, fmt.Errorf("unknown migrate command %q", cmd)
	}
}

// Pending reports whether any migration has not been applied yet.
func (m *Migrator) Pending(ctx context.Context) (bool, error) {
	return m.provider.HasPending(ctx)
}

func (m *Migrator) migrateTo(ctx context.Context, target string) ([]Result, error) {
	if target == "" {
		return nil, errors.New("target version is required")
	}
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("current db version: %w", err)
	}
	switch {
	case current == version:
		return nil, nil
	case current < version:
		return fromResults(m.provider.UpTo(ctx, version))
	default:
		return fromResults(m.provider.DownTo(ctx, version))
	}
}

func (m *Migrator) status(ctx context.Context) ([]Result, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Result, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, Result{Version: st.Source.Version, Path: st.Source.Path, State: string(st.State)})
	}
	return out, nil
}

func fromResults(results []*goose.MigrationResult, err error) ([]Result, error) {
	out := make([]Result, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		out = append(out, Result{
			Version:    res.Source.Version,
			Path:       res.Source.Path,
			Direction:  res.Direction,
			DurationMS: res.Duration.Milliseconds(),
		})
	}
	if err != nil {
		return out, fmt.Errorf("goose: %w", err)
	}
	return out, nil
}
