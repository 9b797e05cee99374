// Package postgres provides a PostgreSQL RunStore built on pgx/v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/debug"
	"github.com/compii/playground/pkg/storage"
)

// Store is a PostgreSQL-backed RunStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.RunStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveRun inserts a run owned by the owner in ctx.
func (s *Store) SaveRun(ctx context.Context, run *api.Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (
			id, owner, status, code, output, stdout, stderr,
			exit_code, duration_ms, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		run.ID, storage.GetOwner(ctx), string(run.Status), run.Code, run.Output, run.Stdout, run.Stderr,
		run.ExitCode, run.DurationMs, nullString(run.RequestID), run.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting run: %w", err)
	}
	debug.Log("storage", "run saved", "id", run.ID, "backend", "postgres")
	return nil
}

const selectColumns = `id, status, code, output, stdout, stderr, exit_code, duration_ms, request_id, created_at`

// GetRun retrieves a run by ID, scoped by owner when one is set.
func (s *Store) GetRun(ctx context.Context, id string) (*api.Run, error) {
	query := "SELECT " + selectColumns + " FROM runs WHERE id = $1"
	args := []any{id}
	if owner := storage.GetOwner(ctx); owner != "" {
		query += " AND owner = $2"
		args = append(args, owner)
	}

	run, err := scanRun(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns pages through runs with keyset pagination on (created_at, seq).
func (s *Store) ListRuns(ctx context.Context, opts storage.ListOptions) (*api.RunList, error) {
	owner := storage.GetOwner(ctx)
	limit := opts.NormalizedLimit()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if owner != "" {
		where = append(where, "owner = "+arg(owner))
	}

	cmp, dir := "<", "DESC"
	if opts.Ascending() {
		cmp, dir = ">", "ASC"
	}

	if opts.After != "" {
		var createdAt, seq int64
		cursorQuery := "SELECT created_at, seq FROM runs WHERE id = $1"
		cursorArgs := []any{opts.After}
		if owner != "" {
			cursorQuery += " AND owner = $2"
			cursorArgs = append(cursorArgs, owner)
		}
		err := s.pool.QueryRow(ctx, cursorQuery, cursorArgs...).Scan(&createdAt, &seq)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("resolving cursor: %w", err)
		}
		where = append(where, fmt.Sprintf("(created_at, seq) %s (%s, %s)", cmp, arg(createdAt), arg(seq)))
	}

	query := "SELECT " + selectColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, seq %s LIMIT %s", dir, dir, arg(limit+1))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	result := &api.RunList{Object: "list", Data: []*api.Run{}}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		result.Data = append(result.Data, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	if len(result.Data) > limit {
		result.Data = result.Data[:limit]
		result.HasMore = true
	}
	if len(result.Data) > 0 {
		result.FirstID = result.Data[0].ID
		result.LastID = result.Data[len(result.Data)-1].ID
	}
	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRun(row pgx.Row) (*api.Run, error) {
	var (
		run       api.Run
		status    string
		requestID *string
	)
	if err := row.Scan(
		&run.ID, &status, &run.Code, &run.Output, &run.Stdout, &run.Stderr,
		&run.ExitCode, &run.DurationMs, &requestID, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Object = "run"
	run.Status = api.RunStatus(status)
	if requestID != nil {
		run.RequestID = *requestID
	}
	return &run, nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey reports a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
