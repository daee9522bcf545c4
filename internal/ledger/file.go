package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DefaultLedgerFile is the snapshot path used when none is configured.
const DefaultLedgerFile = "warnings.json"

// FileRepository persists the ledger as a UTF-8 JSON document on disk.
// Writes go to a temp file that is renamed over the target, so readers never
// observe a partially written snapshot.
type FileRepository struct {
	path string
}

// NewFileRepository creates a repository writing to the given path.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = DefaultLedgerFile
	}
	return &FileRepository{path: path}
}

// Load reads the snapshot from disk. A missing file yields a fresh empty
// snapshot. An unreadable or corrupt file also yields a fresh snapshot —
// the accepted recovery policy — with a warning so operators can see the
// data loss.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return NewSnapshot(), nil
	}
	if err != nil {
		logrus.Warnf("[ledger] unreadable snapshot %s: %v (starting fresh)", r.path, err)
		return NewSnapshot(), nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logrus.Warnf("[ledger] corrupt snapshot %s: %v (starting fresh)", r.path, err)
		return NewSnapshot(), nil
	}

	// Older or hand-edited files may omit sections.
	if snap.Users == nil {
		snap.Users = make(map[string]*UserRecord)
	}
	if snap.History == nil {
		snap.History = []WarningRecord{}
	}
	return &snap, nil
}

// Save writes the snapshot atomically: marshal, write to <path>.tmp, rename.
func (r *FileRepository) Save(_ context.Context, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ledger: create dir %s: %w", dir, err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ledger: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("ledger: rename %s: %w", tmp, err)
	}
	return nil
}
