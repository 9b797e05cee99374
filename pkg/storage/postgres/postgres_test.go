package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/storage"
)

func init() {
	// Point testcontainers at a podman socket when no DOCKER_HOST is set.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			if sock := strings.TrimSpace(string(out)); sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped when no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration tests in short mode")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("playground_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTestRun(id string, createdAt int64) *api.Run {
	return &api.Run{
		ID:         id,
		Object:     "run",
		Status:     api.RunStatusFailed,
		Code:       "let x = ;",
		Output:     "syntax error at 1:9\n",
		Stderr:     "syntax error at 1:9\n",
		ExitCode:   1,
		DurationMs: 42,
		RequestID:  "req-1",
		CreatedAt:  createdAt,
	}
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("run_%s_%d", prefix, time.Now().UnixNano())
}

func TestPostgres_SaveAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(uniqueID("get"), time.Now().Unix())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Object != "run" {
		t.Errorf("Object = %q, want run", got.Object)
	}
	if got.Status != api.RunStatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.Output != run.Output || got.Stderr != run.Stderr || got.Code != run.Code {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.ExitCode != 1 || got.DurationMs != 42 || got.RequestID != "req-1" {
		t.Errorf("metadata mismatch: got %+v", got)
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetRun(context.Background(), "run_nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_DuplicateSave(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(uniqueID("dup"), time.Now().Unix())
	store.SaveRun(ctx, run)

	if err := store.SaveRun(ctx, run); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgres_EmptyRequestID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(uniqueID("noreq"), time.Now().Unix())
	run.RequestID = ""
	store.SaveRun(ctx, run)

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.RequestID != "" {
		t.Errorf("RequestID = %q, want empty", got.RequestID)
	}
}

func TestPostgres_OwnerIsolation(t *testing.T) {
	store := setupTestDB(t)

	ctxA := storage.SetOwner(context.Background(), "org-a")
	ctxB := storage.SetOwner(context.Background(), "org-b")

	run := makeTestRun(uniqueID("owner"), time.Now().Unix())
	store.SaveRun(ctxA, run)

	if _, err := store.GetRun(ctxA, run.ID); err != nil {
		t.Fatalf("owner should see own run: %v", err)
	}
	if _, err := store.GetRun(ctxB, run.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("other owner should not see the run")
	}
	if _, err := store.GetRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unscoped context should see all runs: %v", err)
	}
}

func TestPostgres_ListRuns(t *testing.T) {
	store := setupTestDB(t)

	// A dedicated owner keeps this test independent of rows saved by others.
	ctx := storage.SetOwner(context.Background(), fmt.Sprintf("org-list-%d", time.Now().UnixNano()))

	var ids []string
	for i := range 5 {
		run := makeTestRun(uniqueID(fmt.Sprintf("list%d", i)), 1000+int64(i/2))
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		ids = append(ids, run.ID)
	}

	page, err := store.ListRuns(ctx, storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if !page.HasMore || len(page.Data) != 2 {
		t.Fatalf("first page: len=%d has_more=%v, want 2/true", len(page.Data), page.HasMore)
	}
	if page.Data[0].ID != ids[4] || page.Data[1].ID != ids[3] {
		t.Errorf("first page = [%s %s], want newest first [%s %s]", page.Data[0].ID, page.Data[1].ID, ids[4], ids[3])
	}

	rest, err := store.ListRuns(ctx, storage.ListOptions{Limit: 10, After: page.LastID})
	if err != nil {
		t.Fatalf("ListRuns(after) failed: %v", err)
	}
	if rest.HasMore || len(rest.Data) != 3 {
		t.Fatalf("second page: len=%d has_more=%v, want 3/false", len(rest.Data), rest.HasMore)
	}
	if rest.Data[2].ID != ids[0] {
		t.Errorf("last item = %s, want oldest %s", rest.Data[2].ID, ids[0])
	}

	asc, err := store.ListRuns(ctx, storage.ListOptions{Order: "asc", Limit: 1})
	if err != nil {
		t.Fatalf("ListRuns(asc) failed: %v", err)
	}
	if len(asc.Data) != 1 || asc.Data[0].ID != ids[0] {
		t.Errorf("ascending first = %v, want %s", asc.Data, ids[0])
	}

	if _, err := store.ListRuns(ctx, storage.ListOptions{After: "run_unknown"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown cursor: expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_MigrationsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := store.pool.QueryRow(ctx, "SELECT count(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("schema_migrations rows = %d, want 2", count)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestNew_InvalidDSN(t *testing.T) {
	_, err := New(context.Background(), Config{DSN: "://not a dsn"})
	if err == nil {
		t.Fatal("New() should fail on an unparsable DSN")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.defaults()
	if cfg.MaxConns != 10 || cfg.MinConns != 1 || cfg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if !isDuplicateKey(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})) {
		t.Error("unique violation should be detected through wrapping")
	}
	if isDuplicateKey(errors.New("23505 in plain text")) {
		t.Error("plain errors should not be treated as unique violations")
	}
}
