package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/garnizeh/empleo/internal/db"
	"github.com/garnizeh/empleo/internal/queue"
	"github.com/garnizeh/empleo/pkg/models"
)

// setupQueue opens a shared in-memory DB so multiple connections see the same
// schema, and creates the queue tables.
func setupQueue(t *testing.T) (*db.DB, *queue.Repository) {
	t.Helper()

	ctx := context.Background()
	logger := slog.Default()

	d, err := db.New(ctx, "file::memory:?cache=shared", logger)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS queue_jobs (id INTEGER PRIMARY KEY AUTOINCREMENT, type TEXT NOT NULL, payload TEXT, status TEXT NOT NULL DEFAULT 'queued', attempts INTEGER NOT NULL DEFAULT 0, max_attempts INTEGER NOT NULL DEFAULT 5, priority INTEGER NOT NULL DEFAULT 100, scheduled_at INTEGER NOT NULL DEFAULT (strftime('%s','now')), next_try_at INTEGER, last_error TEXT, created INTEGER NOT NULL DEFAULT (strftime('%s','now')), updated INTEGER NOT NULL DEFAULT (strftime('%s','now')))`); err != nil {
		t.Fatalf("create queue_jobs table: %v", err)
	}
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS dead_letter_jobs (id INTEGER PRIMARY KEY AUTOINCREMENT, job_id INTEGER NOT NULL, type TEXT NOT NULL, payload TEXT, attempts INTEGER NOT NULL, last_error TEXT, failed_at INTEGER NOT NULL DEFAULT (strftime('%s','now')))`); err != nil {
		t.Fatalf("create dead_letter_jobs table: %v", err)
	}

	return d, queue.NewRepository(d)
}

func TestEnqueueAndProcess(t *testing.T) {
	ctx := context.Background()
	_, repo := setupQueue(t)

	handled := make(chan struct{}, 1)
	handlers := map[string]queue.Handler{
		"test": func(ctx context.Context, j *models.QueueJob) error {
			handled <- struct{}{}
			return nil
		},
	}
	pool := queue.NewWorkerPool(repo, handlers, slog.Default(), 1)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-handled:
		// ok
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}
}

func TestExhaustedJobMovesToDeadLetter(t *testing.T) {
	ctx := context.Background()
	d, repo := setupQueue(t)

	handlers := map[string]queue.Handler{
		"doomed": func(ctx context.Context, j *models.QueueJob) error {
			return errors.New("always fails")
		},
	}
	pool := queue.NewWorkerPool(repo, handlers, slog.Default(), 1)
	pool.Start(ctx)
	defer pool.Stop()

	if _, err := pool.Enqueue(ctx, "doomed", map[string]string{"k": "v"}, 10, 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		row := d.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_jobs WHERE type = 'doomed'`)
		var n int
		if err := row.Scan(&n); err != nil {
			t.Fatalf("count dead letters: %v", err)
		}
		if n == 1 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("job was not moved to the dead letter table")
}

func TestFetchNextRespectsSchedule(t *testing.T) {
	ctx := context.Background()
	_, repo := setupQueue(t)

	j := &models.QueueJob{Type: "later", Payload: []byte(`{}`), MaxAttempts: 3, ScheduledAt: time.Now().Add(time.Hour)}
	if _, err := repo.Enqueue(ctx, j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := repo.FetchNext(ctx)
	if err != nil {
		t.Fatalf("FetchNext: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no job before its schedule, got %+v", got)
	}
}

func TestFetchNextClaimsJob(t *testing.T) {
	ctx := context.Background()
	_, repo := setupQueue(t)

	j := &models.QueueJob{Type: "claimed", Payload: []byte(`{}`), MaxAttempts: 3, ScheduledAt: time.Now().Add(-time.Second)}
	if _, err := repo.Enqueue(ctx, j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := repo.FetchNext(ctx)
	if err != nil {
		t.Fatalf("FetchNext: %v", err)
	}
	if got == nil {
		t.Fatalf("expected the queued job")
	}
	if got.Status != "processing" {
		t.Fatalf("fetched job must be claimed as processing, got %q", got.Status)
	}

	// the claimed job must not be handed out again
	again, err := repo.FetchNext(ctx)
	if err != nil {
		t.Fatalf("second FetchNext: %v", err)
	}
	if again != nil {
		t.Fatalf("claimed job handed out twice: %+v", again)
	}
}

func TestBackoffDuration(t *testing.T) {
	if d := queue.BackoffDuration(0); d != time.Second {
		t.Fatalf("attempt 0: got %v", d)
	}
	if d := queue.BackoffDuration(3); d != 8*time.Second {
		t.Fatalf("attempt 3: got %v", d)
	}
	if d := queue.BackoffDuration(20); d != 5*time.Minute {
		t.Fatalf("cap: got %v", d)
	}
}
