package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/daemonunit42/modguard/internal/moderation"
)

// User status values reported by GetUserStats.
const (
	StatusClean  = "clean"
	StatusActive = "active"
	StatusBanned = "banned"
)

// Stats summarizes a user's warning state for callers.
type Stats struct {
	Warnings       int             `json:"warnings"`
	History        []WarningRecord `json:"history"` // most recent StatsHistorySize records
	FirstWarningAt *time.Time      `json:"first_warning,omitempty"`
	LastWarningAt  *time.Time      `json:"last_warning,omitempty"`
	AppealsUsed    int             `json:"appeals_used"`
	CanAppeal      bool            `json:"can_appeal"`
	Status         string          `json:"status"` // clean | active | banned
}

// Ledger is the per-user warning state machine:
//
//	CLEAN(0) -> WARNED_1(1) -> WARNED_2(2) -> BANNED(3)
//
// The count only moves backwards via a one-time appeal or an admin reset.
// Every mutation persists the full snapshot synchronously before returning;
// a failed save is logged and swallowed, with the in-memory state remaining
// authoritative for the process lifetime.
//
// All methods are safe for concurrent use. The classifier call lives in the
// moderation pipeline, so network latency never holds the ledger lock.
type Ledger struct {
	mu    sync.Mutex
	repo  Repository
	snap  *Snapshot
	now   func() time.Time
	newID func() string
}

// New loads the ledger snapshot from the repository. Load errors from
// remote backends are returned; a missing or corrupt store is handled by
// the repository itself and yields an empty ledger.
func New(ctx context.Context, repo Repository) (*Ledger, error) {
	snap, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	if snap.Users == nil {
		snap.Users = make(map[string]*UserRecord)
	}
	return &Ledger{
		repo:  repo,
		snap:  snap,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}, nil
}

// GetWarnings returns the user's current warning count, 0 for unknown
// users. It never creates a record.
func (l *Ledger) GetWarnings(username string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.snap.Users[username]
	if !ok {
		return 0
	}
	return user.Count
}

// RecordViolation increments the user's warning count (clamped at
// MaxWarnings), appends a history record, persists, and returns the new
// count. The user record is created on the first violation.
func (l *Ledger) RecordViolation(ctx context.Context, username, message string, verdict moderation.Verdict) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	user, ok := l.snap.Users[username]
	if !ok {
		user = &UserRecord{CreatedAt: now}
		l.snap.Users[username] = user
	}

	previous := user.Count
	user.Count++
	if user.Count > MaxWarnings {
		user.Count = MaxWarnings
	}

	user.LastWarningAt = &now
	if user.Count == 1 && user.FirstWarningAt == nil {
		user.FirstWarningAt = &now
	}

	l.snap.History = append(l.snap.History, WarningRecord{
		ID:               l.newID(),
		Timestamp:        now,
		Username:         username,
		Message:          message,
		WarningNumber:    user.Count,
		PreviousWarnings: previous,
		Reason:           verdict.Reason,
		Severity:         verdict.Severity,
		Category:         verdict.Category,
		Source:           verdict.Source,
	})
	if len(l.snap.History) > HistoryCap {
		l.snap.History = append([]WarningRecord{}, l.snap.History[len(l.snap.History)-HistoryCap:]...)
	}

	l.persist(ctx)
	return user.Count
}

// Appeal removes one warning if the user exists, has warnings, and has
// never appealed before. A successful appeal permanently consumes the
// user's single lifetime appeal, even if it does not fully un-ban them.
// Returns false with no mutation otherwise.
func (l *Ledger) Appeal(ctx context.Context, username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.snap.Users[username]
	if !ok || user.AppealsUsed >= MaxAppeals || user.Count == 0 {
		return false
	}

	user.Count--
	user.AppealsUsed = MaxAppeals
	l.persist(ctx)
	return true
}

// Reset force-sets the user's count to 0 and clears the last warning time.
// Appeals used and history are deliberately untouched. Unknown users are a
// no-op.
func (l *Ledger) Reset(ctx context.Context, username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.snap.Users[username]
	if !ok {
		return
	}

	user.Count = 0
	user.LastWarningAt = nil
	l.persist(ctx)
}

// BannedCount returns how many users are at or above the ban threshold.
// Used to seed gauges from a freshly loaded snapshot.
func (l *Ledger) BannedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, user := range l.snap.Users {
		if user.Count >= MaxWarnings {
			count++
		}
	}
	return count
}

// GetUserStats returns a summary of the user's state, including their most
// recent StatsHistorySize warning records. Unknown users read as clean.
func (l *Ledger) GetUserStats(username string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	user, ok := l.snap.Users[username]
	if !ok {
		return Stats{History: []WarningRecord{}, Status: StatusClean}
	}

	var history []WarningRecord
	for _, rec := range l.snap.History {
		if rec.Username == username {
			history = append(history, rec)
		}
	}
	if len(history) > StatsHistorySize {
		history = history[len(history)-StatsHistorySize:]
	}
	if history == nil {
		history = []WarningRecord{}
	}

	status := StatusClean
	switch {
	case user.Count >= MaxWarnings:
		status = StatusBanned
	case user.Count > 0:
		status = StatusActive
	}

	return Stats{
		Warnings:       user.Count,
		History:        history,
		FirstWarningAt: user.FirstWarningAt,
		LastWarningAt:  user.LastWarningAt,
		AppealsUsed:    user.AppealsUsed,
		CanAppeal:      user.Count > 0 && user.AppealsUsed == 0,
		Status:         status,
	}
}

// persist saves the snapshot. Persistence failure is logged and swallowed:
// the in-memory state stays authoritative. Callers must hold l.mu.
func (l *Ledger) persist(ctx context.Context) {
	if err := l.repo.Save(ctx, l.snap); err != nil {
		logrus.Warnf("[ledger] save failed: %v (in-memory state retained)", err)
	}
}
