package core

type roomKey struct {
	roomID int64
	topic  string
}

// Room groups clients subscribed to the same topic of a room.
type Room struct {
	ID      int64
	Topic   string
	clients map[*Client]struct{}
}

// NewRoom constructs a room topic with no clients.
func NewRoom(id int64, topic string) *Room {
	return &Room{
		ID:      id,
		Topic:   topic,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Has reports whether c is subscribed.
func (r *Room) Has(c *Client) bool {
	_, ok := r.clients[c]
	return ok
}

// Broadcast sends an event to all clients in the room and returns the slow
// consumers whose buffer was full. They did not receive the event.
func (r *Room) Broadcast(event *Event) []*Client {
	var slow []*Client
	for client := range r.clients {
		select {
		case client.Events <- event:
		default:
			slow = append(slow, client)
		}
	}
	return slow
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

func (r *Room) key() roomKey {
	return roomKey{roomID: r.ID, topic: r.Topic}
}
