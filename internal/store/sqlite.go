package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"appointment-scheduler/internal/model"
)

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqliteTx struct {
	q sqlQuerier
}

func (t sqliteTx) List(ctx context.Context) ([]model.Appointment, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT id, appointment_time, details FROM appointments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.AppointmentTime, &a.Details); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t sqliteTx) Insert(ctx context.Context, a *model.Appointment) error {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO appointments (appointment_time, details) VALUES (?, ?)`,
		a.AppointmentTime, a.Details,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// SQLiteStore keeps appointments in a single SQLite file. It holds one
// connection, and transactions start with BEGIN IMMEDIATE, so exclusive
// sections never interleave.
type SQLiteStore struct {
	sqliteTx
	db *sql.DB
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
}

func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	scripts, err := migrationFiles("sqlite")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	for _, m := range scripts {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration: %w", err)
		}
	}
	log.Info("sqlite store ready", zap.String("path", path), zap.Int("migrations", len(scripts)))

	return &SQLiteStore{sqliteTx: sqliteTx{q: db}, db: db}, nil
}

func (s *SQLiteStore) Exclusive(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(sqliteTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM appointments`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
