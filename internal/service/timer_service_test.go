package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"focustodo/backend/internal/db"
	"focustodo/backend/internal/repository"
	"focustodo/backend/internal/service"
)

func setupTimerService(t *testing.T) (*service.TimerService, *sql.DB) {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := database.Exec(
		`INSERT INTO users (id, email, full_name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"user-1", "user-1@example.com", "User One", "x", now, now,
	); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return service.NewTimerService(repository.NewTimerRepository(database)), database
}

func TestGetSnapshotLazilyCreatesState(t *testing.T) {
	svc, _ := setupTimerService(t)

	snap, apiErr := svc.GetSnapshot(context.Background(), "user-1")
	if apiErr != nil {
		t.Fatalf("get snapshot: %v", apiErr)
	}

	if snap.IsRunning || snap.IsResting || snap.IsLongBreak || snap.CompletedPomodoros != 0 {
		t.Fatalf("expected fresh state, got %+v", snap)
	}
	// Exactly one of startTime/remainingTime is set: the frozen countdown.
	if snap.StartTime != nil {
		t.Fatal("expected no start anchor on a fresh state")
	}
	if snap.RemainingTime == nil || *snap.RemainingTime != 25*60 {
		t.Fatalf("expected frozen default countdown, got %v", snap.RemainingTime)
	}
}

func TestSnapshotRecomputesFromStaleAnchor(t *testing.T) {
	svc, database := setupTimerService(t)
	ctx := context.Background()

	if _, apiErr := svc.GetSnapshot(ctx, "user-1"); apiErr != nil {
		t.Fatalf("seed state: %v", apiErr)
	}

	// Backdate a running timer far past its phase length, as if the process
	// had restarted while the user was away. No background job exists to
	// notice; the read recomputes and clamps.
	staleAnchor := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339Nano)
	if _, err := database.Exec(
		`UPDATE timer_states
		 SET is_running = 1, start_time = ?, remaining_time = NULL
		 WHERE user_id = ?`,
		staleAnchor,
		"user-1",
	); err != nil {
		t.Fatalf("backdate state: %v", err)
	}

	snap, apiErr := svc.GetSnapshot(ctx, "user-1")
	if apiErr != nil {
		t.Fatalf("get snapshot: %v", apiErr)
	}
	if snap.TimeLeft != 0 {
		t.Fatalf("expected clamped countdown 0, got %d", snap.TimeLeft)
	}
	if !snap.IsRunning {
		t.Fatal("expected the read path to leave the running flag untouched")
	}
}

func TestApplyActionRejectsUnknownActionWithoutWriting(t *testing.T) {
	svc, database := setupTimerService(t)
	ctx := context.Background()

	_, apiErr := svc.ApplyAction(ctx, "user-1", service.ActionInput{Action: "restart"})
	if apiErr == nil || apiErr.Code != "invalid_action" {
		t.Fatalf("expected invalid_action, got %v", apiErr)
	}

	// Rejection happens before lazy creation; no row exists yet.
	var count int
	if err := database.QueryRow(`SELECT COUNT(1) FROM timer_states`).Scan(&count); err != nil {
		t.Fatalf("count states: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no state rows after rejected action, got %d", count)
	}
}
