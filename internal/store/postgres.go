package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"appointment-scheduler/internal/model"
)

// advisory lock id taken by every exclusive section ("apptbook")
const bookingLockKey int64 = 0x61707074626f6f6b

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgTx struct {
	q pgQuerier
}

func (t pgTx) List(ctx context.Context) ([]model.Appointment, error) {
	rows, err := t.q.Query(ctx,
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

func (t pgTx) Insert(ctx context.Context, a *model.Appointment) error {
	return t.q.QueryRow(ctx,
		`INSERT INTO appointments (appointment_time, details) VALUES ($1,$2) RETURNING id`,
		a.AppointmentTime, a.Details,
	).Scan(&a.ID)
}

type PostgresStore struct {
	pgTx
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	log.Info("connected to postgres")

	scripts, err := migrationFiles("postgres")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	for _, m := range scripts {
		if _, err := pool.Exec(ctx, m); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migration: %w", err)
		}
	}
	log.Info("migrations applied", zap.Int("count", len(scripts)))

	return &PostgresStore{pgTx: pgTx{q: pool}, pool: pool}, nil
}

// Exclusive serializes callers across every process sharing the database
// with a transaction-scoped advisory lock.
func (s *PostgresStore) Exclusive(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bookingLockKey); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	if err := fn(pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM appointments`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
