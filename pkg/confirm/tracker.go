// Package confirm tracks destructive actions awaiting user confirmation.
// At most one pending action exists per sender; a new request replaces any
// prior one, and entries expire after a configured window.
package confirm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sipeed/driveclaw/pkg/logger"
)

var (
	ErrNoPending    = errors.New("no pending confirmation")
	ErrPathMismatch = errors.New("pending confirmation is for a different path")
	ErrExpired      = errors.New("pending confirmation has expired")
)

// Action is the destructive operation being confirmed.
type Action string

const ActionDelete Action = "delete"

// Pending is one armed confirmation.
type Pending struct {
	SenderID  string
	Path      string
	Action    Action
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Tracker holds pending confirmations keyed by sender. All operations are
// safe for concurrent use; the clock is injectable for tests.
type Tracker struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	pending map[string]Pending
}

func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Tracker{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]Pending),
	}
}

// SetClock overrides the time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Request arms (or re-arms) a delete confirmation for sender. Any prior
// pending entry for the sender is replaced.
func (t *Tracker) Request(senderID, path string) Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	p := Pending{
		SenderID:  senderID,
		Path:      path,
		Action:    ActionDelete,
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	}
	t.pending[senderID] = p
	return p
}

// Confirm consumes the pending entry for sender if it matches path and has
// not expired. Expired entries are removed as a side effect so they can
// never be honored later.
func (t *Tracker) Confirm(senderID, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[senderID]
	if !ok {
		return ErrNoPending
	}
	if t.now().After(p.ExpiresAt) {
		delete(t.pending, senderID)
		return ErrExpired
	}
	if p.Path != path {
		return ErrPathMismatch
	}

	delete(t.pending, senderID)
	return nil
}

// Cancel drops any pending entry for sender.
func (t *Tracker) Cancel(senderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, senderID)
}

// Peek returns the pending entry for sender without consuming it.
func (t *Tracker) Peek(senderID string) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[senderID]
	return p, ok
}

// SweepExpired removes every entry past its expiry and returns how many
// were dropped.
func (t *Tracker) SweepExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for sender, p := range t.pending {
		if now.After(p.ExpiresAt) {
			delete(t.pending, sender)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps on interval until ctx is cancelled. Confirm also checks
// expiry inline, so the sweeper only bounds memory held by abandoned
// requests.
func (t *Tracker) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.SweepExpired(); n > 0 {
				logger.DebugCF("confirm", "Swept expired confirmations", map[string]any{
					"count": n,
				})
			}
		}
	}
}
