package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"appointment-scheduler/internal/model"
)

//go:embed migrations
var migrations embed.FS

// Tx is the part of the store usable inside an exclusive section.
type Tx interface {
	// List returns every appointment ordered by id.
	List(ctx context.Context) ([]model.Appointment, error)
	// Insert stores a and sets a.ID.
	Insert(ctx context.Context, a *model.Appointment) error
}

type Store interface {
	Tx
	// Exclusive runs fn with all other Exclusive callers blocked. Changes made
	// through the Tx are committed only if fn returns nil.
	Exclusive(ctx context.Context, fn func(Tx) error) error
	// DeleteAll removes every appointment and returns how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open picks the backend from dsn: a postgres URL opens a pgx pool, anything
// else is a SQLite file path.
func Open(ctx context.Context, dsn string, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if IsPostgres(dsn) {
		pg, err := OpenPostgres(ctx, dsn, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := OpenSQLite(ctx, dsn, log)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// migrationFiles returns the dialect's migration scripts in file name order.
func migrationFiles(dialect string) ([]string, error) {
	dir := "migrations/" + dialect
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(migrations, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		out = append(out, string(b))
	}
	return out, nil
}
