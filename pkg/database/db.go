package database

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"go.uber.org/zap"
)

// Config holds database connection details. DSNs are given without scheme,
// e.g. "churn:secret@localhost:5432/churnshield?sslmode=disable".
type Config struct {
	PrimaryDSN string
	ReadDSNs   []string // optional replicas; reads fall back to the primary
	MaxConns   int32
	MinConns   int32
}

// DB routes reads to replicas and writes to the primary.
type DB struct {
	writer  *pgxpool.Pool
	readers []*pgxpool.Pool
	logger  *zap.Logger
}

// New opens the pools and returns a closer that releases all of them.
func New(ctx context.Context, logger *zap.Logger, cfg Config) (*DB, func(), error) {
	writer, err := newPool(ctx, logger, cfg.PrimaryDSN, cfg.MaxConns, cfg.MinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect primary: %w", err)
	}

	var readers []*pgxpool.Pool
	for _, dsn := range cfg.ReadDSNs {
		if utils.IsEmpty(dsn) {
			continue
		}
		reader, err := newPool(ctx, logger, dsn, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			writer.Close()
			for _, r := range readers {
				r.Close()
			}
			return nil, nil, fmt.Errorf("connect replica: %w", err)
		}
		readers = append(readers, reader)
	}
	logger.Info("postgres_pools_ready", zap.Int("replicas", len(readers)))

	db := &DB{writer: writer, readers: readers, logger: logger}
	return db, db.close, nil
}

func newPool(ctx context.Context, logger *zap.Logger, dsn string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	dsn = "postgres://" + dsn
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	if minConns > 0 && minConns <= config.MaxConns {
		config.MinConns = minConns
	}
	config.MaxConnLifetime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Debug("postgres_pool_established", zap.String("dsn", maskDSN(dsn)))
	return pool, nil
}

// maskDSN hides the password component of a DSN for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "*****")
	}
	return u.String()
}

func (db *DB) close() {
	for _, r := range db.readers {
		r.Close()
	}
	db.writer.Close()
	db.logger.Info("postgres_pools_closed")
}

// Ping checks the primary.
func (db *DB) Ping(ctx context.Context) error {
	return db.writer.Ping(ctx)
}

// WithTransaction runs fn in a transaction on the primary; commits on nil error,
// rolls back otherwise. Panics roll back and are re-raised.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := db.writer.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()
	return fn(ctx, tx)
}

// Query routes to a random reader.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.reader().Query(ctx, sql, args...)
}

// QueryRow routes to a random reader.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.reader().QueryRow(ctx, sql, args...)
}

// QueryRowPrimary reads from the primary, for read-after-write paths.
func (db *DB) QueryRowPrimary(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.writer.QueryRow(ctx, sql, args...)
}

// Exec routes to the primary.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.writer.Exec(ctx, sql, args...)
}

func (db *DB) reader() *pgxpool.Pool {
	if len(db.readers) == 0 {
		return db.writer
	}
	return db.readers[rand.Intn(len(db.readers))]
}
