package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LiveState describes the live streams of an open subscription.
type LiveState int32

const (
	// LiveOff means no subscription is open.
	LiveOff LiveState = iota
	// LiveConnected means both streams are delivering.
	LiveConnected
	// LiveDegraded means at least one stream failed or ended, or history
	// could not be loaded. Updates may be missing until the room is
	// selected again.
	LiveDegraded
)

func (s LiveState) String() string {
	switch s {
	case LiveOff:
		return "off"
	case LiveConnected:
		return "live"
	case LiveDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Subscription owns the insert and typing streams of exactly one room and
// feeds them into a View and a Tracker from a single goroutine.
type Subscription struct {
	transport Transport
	store     MessageStore
	profiles  ProfileLookup
	identity  IdentityProvider
	view      *View
	tracker   *Tracker
	opts      Options
	log       *zerolog.Logger

	mu      sync.Mutex
	open    bool
	roomID  int64
	cancel  context.CancelFunc
	inserts Stream[Message]
	typing  Stream[TypingSignal]
	done    chan struct{}
	names   map[int64]string

	live    atomic.Int32
	changed *notifier
}

// NewSubscription wires a subscription to its collaborators. identity may be
// nil, in which case no typing signal is treated as the user's own.
func NewSubscription(
	transport Transport,
	store MessageStore,
	profiles ProfileLookup,
	identity IdentityProvider,
	view *View,
	tracker *Tracker,
	opts Options,
	logger *zerolog.Logger,
) *Subscription {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Subscription{
		transport: transport,
		store:     store,
		profiles:  profiles,
		identity:  identity,
		view:      view,
		tracker:   tracker,
		opts:      opts.withDefaults(),
		log:       logger,
	}
}

// Open subscribes to the room's streams, loads its history into the view and
// starts delivering live events.
//
// Streams are subscribed before history is fetched so that a message
// persisted in between is buffered by the insert stream and deduplicated by
// the view instead of being lost. Stream and history failures are returned
// as *TransportError values; the subscription stays open in a degraded
// state and must still be closed.
func (s *Subscription) Open(ctx context.Context, roomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		if s.roomID == roomID {
			return nil
		}
		return ErrSubscriptionBusy
	}

	var errs []error

	inserts, err := s.subscribeInserts(ctx, roomID)
	if err != nil {
		inserts = nil
		s.log.Warn().Err(err).Int64("room_id", roomID).Msg("insert stream unavailable")
		errs = append(errs, transportError("subscribe messages", err))
	}
	typing, err := s.subscribeTyping(ctx, roomID)
	if err != nil {
		typing = nil
		s.log.Warn().Err(err).Int64("room_id", roomID).Msg("typing stream unavailable")
		errs = append(errs, transportError("subscribe typing", err))
	}

	s.names = make(map[int64]string)
	if id, ok := s.self(); ok && id.DisplayName != "" {
		s.names[id.UserID] = id.DisplayName
	}

	historyOK := true
	history, err := s.fetchHistory(ctx, roomID)
	if err != nil {
		historyOK = false
		s.log.Warn().Err(err).Int64("room_id", roomID).Msg("history fetch failed")
		s.view.Fail(err)
		errs = append(errs, transportError("fetch history", err))
	} else if setErr := s.view.SetInitial(history); setErr != nil {
		errs = append(errs, setErr)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.open = true
	s.roomID = roomID
	s.cancel = cancel
	s.inserts = inserts
	s.typing = typing
	s.done = make(chan struct{})

	if inserts != nil && typing != nil && historyOK {
		s.setLive(LiveConnected)
	} else {
		s.setLive(LiveDegraded)
	}

	go s.run(runCtx, roomID, inserts, typing, s.done)

	s.log.Debug().Int64("room_id", roomID).Int("history", len(history)).Msg("room subscription opened")
	return errors.Join(errs...)
}

// Close releases both streams and waits for the delivery goroutine to exit.
// After Close returns no event reaches the view or the tracker. Calling it
// on a closed subscription is a no-op.
func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}

	s.cancel()
	var errs []error
	if s.inserts != nil {
		errs = append(errs, s.inserts.Close())
	}
	if s.typing != nil {
		errs = append(errs, s.typing.Close())
	}
	<-s.done

	s.log.Debug().Int64("room_id", s.roomID).Msg("room subscription closed")

	s.open = false
	s.roomID = 0
	s.cancel = nil
	s.inserts = nil
	s.typing = nil
	s.done = nil
	s.names = nil
	s.setLive(LiveOff)
	return errors.Join(errs...)
}

// RoomID returns the open room, if any.
func (s *Subscription) RoomID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.open
}

// Live reports the state of the live streams.
func (s *Subscription) Live() LiveState {
	return LiveState(s.live.Load())
}

func (s *Subscription) setLive(state LiveState) {
	if LiveState(s.live.Swap(int32(state))) != state {
		s.changed.notify()
	}
}

func (s *Subscription) subscribeInserts(ctx context.Context, roomID int64) (Stream[Message], error) {
	subCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	return s.transport.SubscribeInserts(subCtx, roomID)
}

func (s *Subscription) subscribeTyping(ctx context.Context, roomID int64) (Stream[TypingSignal], error) {
	subCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()
	return s.transport.SubscribeTyping(subCtx, roomID)
}

func (s *Subscription) fetchHistory(ctx context.Context, roomID int64) ([]Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	history, err := s.store.RecentMessages(fetchCtx, roomID, s.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	for i := range history {
		history[i].SenderName = s.senderName(ctx, history[i].SenderID, history[i].SenderName)
	}
	return history, nil
}

// run is the single sequencing point of the room: events of both streams are
// applied one at a time.
func (s *Subscription) run(ctx context.Context, roomID int64, inserts Stream[Message], typing Stream[TypingSignal], done chan struct{}) {
	defer close(done)

	var insertCh <-chan Message
	if inserts != nil {
		insertCh = inserts.Events()
	}
	var typingCh <-chan TypingSignal
	if typing != nil {
		typingCh = typing.Events()
	}

	for insertCh != nil || typingCh != nil {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-insertCh:
			if !ok {
				insertCh = nil
				s.streamEnded(ctx, roomID, "messages")
				continue
			}
			s.applyInsert(ctx, roomID, msg)
		case sig, ok := <-typingCh:
			if !ok {
				typingCh = nil
				s.streamEnded(ctx, roomID, "typing")
				continue
			}
			s.applyTyping(ctx, roomID, sig)
		}
	}
}

func (s *Subscription) applyInsert(ctx context.Context, roomID int64, msg Message) {
	if msg.RoomID != roomID {
		s.log.Debug().Int64("room_id", roomID).Int64("message_room_id", msg.RoomID).Msg("dropping message for another room")
		return
	}
	msg.SenderName = s.senderName(ctx, msg.SenderID, msg.SenderName)
	if ctx.Err() != nil {
		return
	}
	s.view.Append(msg)
	// A delivered message ends the sender's typing entry before its TTL.
	s.tracker.Clear(msg.SenderID)
}

func (s *Subscription) applyTyping(ctx context.Context, roomID int64, sig TypingSignal) {
	if sig.RoomID != roomID {
		return
	}
	if id, ok := s.self(); ok && id.UserID == sig.UserID {
		return
	}
	name := sig.DisplayName
	if name == "" {
		name = s.senderName(ctx, sig.UserID, "")
	}
	if ctx.Err() != nil {
		return
	}
	s.tracker.Touch(roomID, sig.UserID, name)
}

func (s *Subscription) streamEnded(ctx context.Context, roomID int64, topic string) {
	if ctx.Err() != nil {
		return
	}
	s.log.Warn().Int64("room_id", roomID).Str("topic", topic).Msg("live stream ended")
	s.setLive(LiveDegraded)
}

// senderName resolves a display name, falling back to UnknownSender. Lookup
// results are cached for the lifetime of the activation.
func (s *Subscription) senderName(ctx context.Context, userID int64, known string) string {
	if known != "" {
		s.names[userID] = known
		return known
	}
	if name, ok := s.names[userID]; ok {
		return name
	}
	if s.profiles == nil {
		return UnknownSender
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()

	name, err := s.profiles.DisplayName(lookupCtx, userID)
	switch {
	case err == nil && name != "":
		s.names[userID] = name
		return name
	case err == nil, errors.Is(err, ErrProfileNotFound):
		s.log.Debug().Int64("user_id", userID).Msg("profile not found")
		s.names[userID] = UnknownSender
	default:
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("profile lookup failed")
	}
	return UnknownSender
}

func (s *Subscription) self() (Identity, bool) {
	if s.identity == nil {
		return Identity{}, false
	}
	return s.identity.Identity()
}
