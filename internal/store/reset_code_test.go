package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestResetCodeRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.ResetCodes()
	expires := time.Now().UTC().Add(15 * time.Minute).Truncate(time.Second)

	if err := repo.Upsert(&ResetCode{Email: "Reset@Example.com", CodeHash: "first", ExpiresAt: expires}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	got, err := repo.Get("reset@example.com")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.CodeHash != "first" || !got.ExpiresAt.Equal(expires) {
		t.Errorf("unexpected code: %+v", got)
	}

	if err := repo.Upsert(&ResetCode{Email: "reset@example.com", CodeHash: "second", ExpiresAt: expires}); err != nil {
		t.Fatalf("failed to replace: %v", err)
	}
	got, err = repo.Get("RESET@example.com")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.CodeHash != "second" {
		t.Errorf("CodeHash = %q, want replaced value", got.CodeHash)
	}

	if err := repo.Delete("reset@example.com"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := repo.Get("reset@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete("reset@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResetCodeRepository_RecordFailure(t *testing.T) {
	s := newTestStore(t)
	repo := s.ResetCodes()
	expires := time.Now().UTC().Add(15 * time.Minute)

	if _, err := repo.RecordFailure("nobody@example.com", 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Upsert(&ResetCode{Email: "reset@example.com", CodeHash: "h", ExpiresAt: expires}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	for i := 1; i < 3; i++ {
		burned, err := repo.RecordFailure("Reset@example.com", 3)
		if err != nil || burned {
			t.Fatalf("attempt %d: burned=%v err=%v", i, burned, err)
		}
	}
	got, err := repo.Get("reset@example.com")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", got.Attempts)
	}

	if err := repo.Upsert(&ResetCode{Email: "reset@example.com", CodeHash: "h2", ExpiresAt: expires}); err != nil {
		t.Fatalf("failed to replace: %v", err)
	}
	if got, _ := repo.Get("reset@example.com"); got == nil || got.Attempts != 0 {
		t.Errorf("a new code should start with no attempts, got %+v", got)
	}

	for i := 1; i <= 3; i++ {
		burned, err := repo.RecordFailure("reset@example.com", 3)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if burned != (i == 3) {
			t.Errorf("attempt %d: burned = %v", i, burned)
		}
	}
	if _, err := repo.Get("reset@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected code to be deleted, got %v", err)
	}
}

func TestMigrations_AddResetAttemptsColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if _, err := s.DB().Exec(`DROP TABLE reset_codes`); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}
	if _, err := s.DB().Exec(`CREATE TABLE reset_codes (
		email TEXT PRIMARY KEY,
		code_hash TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`); err != nil {
		t.Fatalf("failed to create old table: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	if err := s.ResetCodes().Upsert(&ResetCode{Email: "a@example.com", CodeHash: "h", ExpiresAt: time.Now()}); err != nil {
		t.Fatalf("upsert after upgrade: %v", err)
	}
	if _, err := s.ResetCodes().RecordFailure("a@example.com", 5); err != nil {
		t.Fatalf("record failure after upgrade: %v", err)
	}
}
