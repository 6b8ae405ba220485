package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultTypingTTL is how long a typing entry lives without a refresh.
const DefaultTypingTTL = 3 * time.Second

type typingEntry struct {
	user  TypingUser
	seq   uint64
	timer *clock.Timer
}

// Tracker is the room-scoped "who is typing" set.
//
// Each user has at most one pending expiry timer: Touch stops the previous
// timer before arming a new one, so a user who keeps typing never drops out
// early. Timers are tagged with the room epoch and a per-touch sequence
// number; a timer that fires after Reset, Clear or a newer Touch is ignored.
type Tracker struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	roomID  int64
	epoch   uint64
	seq     uint64
	entries map[int64]*typingEntry
	changed *notifier
}

// NewTracker builds a tracker. A nil clock means wall time; ttl <= 0 falls
// back to DefaultTypingTTL.
func NewTracker(clk clock.Clock, ttl time.Duration) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Tracker{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[int64]*typingEntry),
	}
}

// Touch inserts or refreshes the entry for userID and re-arms its expiry.
// Signals for a room other than the current one are dropped.
func (t *Tracker) Touch(roomID, userID int64, displayName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if roomID != t.roomID {
		return
	}

	if prev, ok := t.entries[userID]; ok {
		prev.timer.Stop()
	}

	t.seq++
	epoch, seq := t.epoch, t.seq
	entry := &typingEntry{
		user: TypingUser{UserID: userID, DisplayName: displayName},
		seq:  seq,
	}
	entry.timer = t.clock.AfterFunc(t.ttl, func() {
		t.expire(epoch, userID, seq)
	})
	t.entries[userID] = entry
	t.changed.notify()
}

// Clear removes userID unconditionally. Unknown users are a no-op.
func (t *Tracker) Clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[userID]
	if !ok {
		return
	}
	entry.timer.Stop()
	delete(t.entries, userID)
	t.changed.notify()
}

// Reset drops every entry, cancels pending timers and rebinds the tracker to
// roomID.
func (t *Tracker) Reset(roomID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range t.entries {
		entry.timer.Stop()
	}
	t.entries = make(map[int64]*typingEntry)
	t.epoch++
	t.roomID = roomID
	t.changed.notify()
}

// Typing returns the live entries sorted by display name.
func (t *Tracker) Typing() []TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]TypingUser, 0, len(t.entries))
	for _, entry := range t.entries {
		users = append(users, entry.user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName != users[j].DisplayName {
			return users[i].DisplayName < users[j].DisplayName
		}
		return users[i].UserID < users[j].UserID
	})
	return users
}

// Len reports the number of live entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) expire(epoch uint64, userID int64, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if epoch != t.epoch {
		return
	}
	entry, ok := t.entries[userID]
	if !ok || entry.seq != seq {
		return
	}
	delete(t.entries, userID)
	t.changed.notify()
}
