package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"voterfield/internal/domain"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

// withTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()
	return fn(tx)
}

// mapErr translates driver errors into the domain taxonomy. what names the
// entity for not-found messages.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return domain.NotFound(what)
		case "23505":
			return domain.Conflict(conflictMessage(pgErr.ConstraintName))
		case "23503":
			return domain.NotFound(referencedEntity(pgErr.ConstraintName))
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func conflictMessage(constraint string) string {
	switch {
	case strings.Contains(constraint, "email"):
		return "email already in use"
	case strings.Contains(constraint, "external_id"):
		return "external id already exists in this organization"
	default:
		return "record already exists"
	}
}

// referencedEntity names the parent of a violated org-scoped foreign key.
// Constraint names follow <table>_<parent>_fk in the migrations.
func referencedEntity(constraint string) string {
	switch {
	case strings.HasSuffix(constraint, "_voter_fk"):
		return "voter"
	case strings.HasSuffix(constraint, "_assignment_fk"):
		return "assignment"
	case strings.HasSuffix(constraint, "_list_fk"):
		return "walk list"
	case strings.HasSuffix(constraint, "_user_fk"), strings.HasSuffix(constraint, "_canvasser_fk"):
		return "user"
	case strings.HasSuffix(constraint, "_org_fk"):
		return "organization"
	default:
		return "referenced record"
	}
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// jsonArg encodes m for a jsonb parameter; nil maps become SQL NULL.
func jsonArg[M ~map[string]V, V any](m M) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func decodeJSON[T any](raw []byte) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}
