package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Deps are the external collaborators of the core.
type Deps struct {
	Directory RoomDirectory
	Store     MessageStore
	Profiles  ProfileLookup
	Transport Transport
	Identity  IdentityProvider
}

// Snapshot is a point-in-time view of the active room for renderers.
type Snapshot struct {
	Room     Room
	Active   bool
	Messages []Message
	Status   LogStatus
	Err      error
	Typing   []TypingUser
	Live     LiveState
}

// Controller keeps zero or one room active. Switching rooms tears the old
// subscription down and rebuilds the view and tracker from scratch.
type Controller struct {
	directory RoomDirectory
	view      *View
	tracker   *Tracker
	sub       *Subscription
	outbound  *Outbound
	log       *zerolog.Logger
	changed   *notifier

	// selectMu serializes activations; stateMu guards the fields below and
	// is never held across network calls.
	selectMu  sync.Mutex
	stateMu   sync.RWMutex
	rooms     []Room
	loaded    bool
	active    int64
	hasActive bool
}

// NewController assembles the core around deps.
func NewController(deps Deps, opts Options, logger *zerolog.Logger) *Controller {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	opts = opts.withDefaults()
	changed := newNotifier()

	view := NewView()
	view.changed = changed
	tracker := NewTracker(opts.Clock, opts.TypingTTL)
	tracker.changed = changed

	sub := NewSubscription(deps.Transport, deps.Store, deps.Profiles, deps.Identity, view, tracker, opts, logger)
	sub.changed = changed

	c := &Controller{
		directory: deps.Directory,
		view:      view,
		tracker:   tracker,
		sub:       sub,
		log:       logger,
		changed:   changed,
	}
	c.outbound = NewOutbound(deps.Store, deps.Transport, deps.Identity, c, &Draft{}, opts, logger)
	return c
}

// Start loads the room directory and selects the first room when nothing is
// selected yet.
func (c *Controller) Start(ctx context.Context) error {
	rooms, err := c.LoadRooms(ctx)
	if err != nil {
		return err
	}
	if _, ok := c.ActiveRoom(); ok || len(rooms) == 0 {
		return nil
	}
	return c.SelectRoom(ctx, rooms[0].ID)
}

// LoadRooms fetches the room directory.
func (c *Controller) LoadRooms(ctx context.Context) ([]Room, error) {
	if c.directory == nil {
		return nil, nil
	}
	rooms, err := c.directory.ListRooms(ctx)
	if err != nil {
		return nil, transportError("list rooms", err)
	}

	c.stateMu.Lock()
	c.rooms = append([]Room(nil), rooms...)
	c.loaded = true
	c.stateMu.Unlock()

	c.log.Debug().Int("rooms", len(rooms)).Msg("room directory loaded")
	c.changed.notify()
	return rooms, nil
}

// SelectRoom activates roomID. Selecting the active room is a no-op while it
// is healthy; a room whose history failed or whose streams are degraded is
// opened again. The returned error may be a joined set of *TransportError
// values, in which case the room is active but degraded.
func (c *Controller) SelectRoom(ctx context.Context, roomID int64) error {
	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	c.stateMu.RLock()
	same := c.hasActive && c.active == roomID
	known := !c.loaded || c.hasRoomLocked(roomID)
	c.stateMu.RUnlock()

	if same && c.view.Status() != LogFailed && c.sub.Live() == LiveConnected {
		return nil
	}
	if !known {
		return ErrUnknownRoom
	}

	if err := c.sub.Close(); err != nil {
		c.log.Debug().Err(err).Msg("closing previous room")
	}
	c.view.Reset(roomID)
	c.tracker.Reset(roomID)
	c.setActive(roomID, true)

	c.log.Info().Int64("room_id", roomID).Msg("room selected")
	return c.sub.Open(ctx, roomID)
}

// Teardown closes the active subscription and cancels typing timers. It is
// safe to call more than once.
func (c *Controller) Teardown() error {
	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	err := c.sub.Close()
	c.tracker.Reset(0)
	c.setActive(0, false)
	return err
}

// ActiveRoom reports the selected room.
func (c *Controller) ActiveRoom() (int64, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.active, c.hasActive
}

// Rooms returns the loaded directory.
func (c *Controller) Rooms() []Room {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return append([]Room(nil), c.rooms...)
}

// Room looks a room up in the loaded directory.
func (c *Controller) Room(roomID int64) (Room, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	for _, room := range c.rooms {
		if room.ID == roomID {
			return room, true
		}
	}
	return Room{}, false
}

// View is the message log of the active room.
func (c *Controller) View() *View { return c.view }

// Tracker is the typing set of the active room.
func (c *Controller) Tracker() *Tracker { return c.tracker }

// Outbound sends messages and typing signals to the active room.
func (c *Controller) Outbound() *Outbound { return c.outbound }

// Live reports the live stream state of the active room.
func (c *Controller) Live() LiveState { return c.sub.Live() }

// Updates delivers a coalesced signal whenever rooms, messages, typing or
// stream state change.
func (c *Controller) Updates() <-chan struct{} { return c.changed.C() }

// Snapshot captures everything a renderer needs in one call.
func (c *Controller) Snapshot() Snapshot {
	roomID, active := c.ActiveRoom()
	snap := Snapshot{Active: active}
	if active {
		if room, ok := c.Room(roomID); ok {
			snap.Room = room
		} else {
			snap.Room = Room{ID: roomID}
		}
		snap.Messages = c.view.Messages()
		snap.Status = c.view.Status()
		snap.Err = c.view.Err()
		snap.Typing = c.tracker.Typing()
	}
	snap.Live = c.sub.Live()
	return snap
}

func (c *Controller) setActive(roomID int64, ok bool) {
	c.stateMu.Lock()
	c.active, c.hasActive = roomID, ok
	c.stateMu.Unlock()
	c.changed.notify()
}

func (c *Controller) hasRoomLocked(roomID int64) bool {
	for _, room := range c.rooms {
		if room.ID == roomID {
			return true
		}
	}
	return false
}
