package chat

import "sync"

// LogStatus describes the history state of a View.
type LogStatus int

const (
	// LogIdle means no room has been activated yet.
	LogIdle LogStatus = iota
	// LogLoading means the view was reset and history is pending.
	LogLoading
	// LogReady means history was loaded, possibly empty.
	LogReady
	// LogFailed means the history fetch failed; Err holds the cause.
	LogFailed
)

func (s LogStatus) String() string {
	switch s {
	case LogIdle:
		return "idle"
	case LogLoading:
		return "loading"
	case LogReady:
		return "ready"
	case LogFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is the ordered, deduplicated message log of the active room.
//
// Appends keep insertion order and are not re-sorted; out-of-order live
// delivery is rare and only cosmetic.
type View struct {
	mu       sync.RWMutex
	roomID   int64
	messages []Message
	seen     map[int64]struct{}
	fresh    bool
	status   LogStatus
	err      error
	changed  *notifier
}

// NewView returns an idle, empty view.
func NewView() *View {
	return &View{seen: make(map[int64]struct{})}
}

// Reset empties the view for roomID. It must precede history and live events
// of every activation.
func (v *View) Reset(roomID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.roomID = roomID
	v.messages = nil
	v.seen = make(map[int64]struct{})
	v.fresh = true
	v.status = LogLoading
	v.err = nil
	v.changed.notify()
}

// SetInitial replaces the contents with the history fetch result, which must
// already be ascending by CreatedAt. Duplicated ids in the input keep their
// first occurrence.
func (v *View) SetInitial(messages []Message) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.fresh {
		return ErrLogNotFresh
	}
	v.fresh = false

	v.messages = make([]Message, 0, len(messages))
	for _, msg := range messages {
		if _, dup := v.seen[msg.ID]; dup {
			continue
		}
		v.seen[msg.ID] = struct{}{}
		v.messages = append(v.messages, msg)
	}
	v.status = LogReady
	v.changed.notify()
	return nil
}

// Fail records a failed history fetch. The log stays empty but is
// distinguishable from an empty room.
func (v *View) Fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.fresh = false
	v.status = LogFailed
	v.err = err
	v.changed.notify()
}

// Append inserts msg unless an entry with the same ID exists. A view whose
// history fetch failed stays empty until the next Reset. It reports whether
// the message was added.
func (v *View) Append(msg Message) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.status == LogFailed {
		return false
	}
	if _, dup := v.seen[msg.ID]; dup {
		return false
	}
	v.fresh = false
	v.seen[msg.ID] = struct{}{}
	v.messages = append(v.messages, msg)
	v.changed.notify()
	return true
}

// Messages returns a point-in-time copy of the log.
func (v *View) Messages() []Message {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Len reports the number of messages.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.messages)
}

// RoomID is the room the view was last reset for.
func (v *View) RoomID() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.roomID
}

// Status reports the history state.
func (v *View) Status() LogStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// Err is the history fetch error when Status is LogFailed.
func (v *View) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}
