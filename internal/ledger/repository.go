// Package ledger tracks per-user warning state: an escalating penalty
// machine (warning, final warning, ban) fed by moderation verdicts, with a
// one-time appeal per user. State is persisted as a single snapshot after
// every mutation; the storage backend is pluggable behind Repository.
package ledger

import (
	"context"
	"time"
)

const (
	// Version is written into every snapshot for forward compatibility.
	Version = "2.1"

	// MaxWarnings is the warning count at which a user is banned. The count
	// is clamped here even if violations keep coming.
	MaxWarnings = 3

	// MaxAppeals is the lifetime appeal allowance per user.
	MaxAppeals = 1

	// HistoryCap is the maximum number of warning records retained.
	// Oldest records are evicted first.
	HistoryCap = 1000

	// StatsHistorySize is how many recent records GetUserStats returns.
	StatsHistorySize = 5
)

// UserRecord holds one user's warning state.
type UserRecord struct {
	Count          int        `json:"count"`
	FirstWarningAt *time.Time `json:"first_warning"` // set once, on 0->1
	LastWarningAt  *time.Time `json:"last_warning"`  // updated on every increment
	CreatedAt      time.Time  `json:"created_at"`
	AppealsUsed    int        `json:"appeals"`
}

// WarningRecord is one append-only history entry.
type WarningRecord struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Username         string    `json:"username"`
	Message          string    `json:"message"`
	WarningNumber    int       `json:"warning_number"`    // post-increment count
	PreviousWarnings int       `json:"previous_warnings"` // pre-increment count
	Reason           string    `json:"reason"`
	Severity         string    `json:"severity"`
	Category         string    `json:"category"`
	Source           string    `json:"source"`
}

// Snapshot is the full persisted ledger state. It round-trips through JSON:
// load(save(s)) yields equivalent users and history.
type Snapshot struct {
	Users     map[string]*UserRecord `json:"users"`
	History   []WarningRecord        `json:"history"`
	Version   string                 `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewSnapshot returns an empty ledger snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:     make(map[string]*UserRecord),
		History:   []WarningRecord{},
		Version:   Version,
		CreatedAt: time.Now().UTC(),
	}
}

// Repository loads and stores ledger snapshots. Implementations must treat
// an absent store as an empty ledger, never as an error; a corrupt store is
// also replaced with an empty ledger (logged) per the recovery policy.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}
