package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileRepository_MissingFile(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "warnings.json"))

	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(snap.Users) != 0 || len(snap.History) != 0 {
		t.Errorf("expected empty snapshot, got %d users, %d records", len(snap.Users), len(snap.History))
	}
	if snap.Version != Version {
		t.Errorf("Version = %q, want %q", snap.Version, Version)
	}
}

func TestFileRepository_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warnings.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := NewSnapshot()
	snap.Users["alice"] = &UserRecord{
		Count:          2,
		FirstWarningAt: &now,
		LastWarningAt:  &now,
		CreatedAt:      now,
		AppealsUsed:    1,
	}
	snap.History = append(snap.History,
		WarningRecord{
			ID: "id-1", Timestamp: now, Username: "alice", Message: "first",
			WarningNumber: 1, PreviousWarnings: 0,
			Reason: "r1", Severity: "high", Category: "explicit_content", Source: "local_filter",
		},
		WarningRecord{
			ID: "id-2", Timestamp: now, Username: "alice", Message: "second",
			WarningNumber: 2, PreviousWarnings: 1,
			Reason: "r2", Severity: "medium", Category: "insult", Source: "ai",
		},
	)

	if err := repo.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	user, ok := loaded.Users["alice"]
	if !ok {
		t.Fatal("alice missing after round-trip")
	}
	if user.Count != 2 || user.AppealsUsed != 1 {
		t.Errorf("user = %+v, want count 2, appeals 1", user)
	}
	if user.FirstWarningAt == nil || !user.FirstWarningAt.Equal(now) {
		t.Errorf("FirstWarningAt = %v, want %v", user.FirstWarningAt, now)
	}
	if len(loaded.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(loaded.History))
	}
	// Insertion order preserved.
	if loaded.History[0].ID != "id-1" || loaded.History[1].ID != "id-2" {
		t.Errorf("history order lost: %q, %q", loaded.History[0].ID, loaded.History[1].ID)
	}
	if loaded.Version != snap.Version {
		t.Errorf("Version = %q, want %q", loaded.Version, snap.Version)
	}
}

func TestFileRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warnings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := NewFileRepository(path)
	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v, corrupt files must yield a fresh ledger", err)
	}
	if len(snap.Users) != 0 {
		t.Errorf("expected fresh snapshot, got %d users", len(snap.Users))
	}
}

func TestFileRepository_MissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warnings.json")
	if err := os.WriteFile(path, []byte(`{"version":"2.1"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := NewFileRepository(path)
	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if snap.Users == nil || snap.History == nil {
		t.Error("Load must initialize missing sections")
	}
}

func TestFileRepository_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warnings.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	if err := repo.Save(ctx, NewSnapshot()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// The temp file must not survive a completed save.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestFileRepository_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "warnings.json")
	repo := NewFileRepository(path)

	if err := repo.Save(context.Background(), NewSnapshot()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}
