package room

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyInRoom is returned when a connection attempts a second join.
	// A connection may join exactly one room per session.
	ErrAlreadyInRoom = errors.New("connection already in a room")
	// ErrUnknownConnection is returned when the connection id is not (or no
	// longer) registered.
	ErrUnknownConnection = errors.New("unknown connection")
)

// Connection is the registry's record of one live client session.
type Connection struct {
	ID          string
	Name        string
	RoomID      string
	ConnectedAt time.Time
}

// Registry tracks live connections and the single room each belongs to.
//
// It is a best-effort secondary index over the Store: membership disputes
// are resolved in the Store's favor. All operations are safe under
// concurrent access and never hold the lock across I/O.
type Registry struct {
	clock func() time.Time

	mu    sync.Mutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		clock: time.Now,
		conns: make(map[string]*Connection),
	}
}

// Register records a newly accepted transport session and returns its
// connection id. It always succeeds.
func (r *Registry) Register() string {
	id := uuid.NewString()
	r.mu.Lock()
	r.conns[id] = &Connection{ID: id, ConnectedAt: r.clock()}
	r.mu.Unlock()
	return id
}

// AssignRoom binds the connection to a room and records its display name.
// The binding is set once; a second call fails with ErrAlreadyInRoom and
// leaves the original room untouched.
func (r *Registry) AssignRoom(id, roomID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if c.RoomID != "" {
		return ErrAlreadyInRoom
	}
	c.RoomID = roomID
	c.Name = name
	return nil
}

// Membership reports the room and display name for id. ok is false when the
// connection is unknown; roomID is empty when it has not joined yet.
func (r *Registry) Membership(id string) (roomID, name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return "", "", false
	}
	return c.RoomID, c.Name, true
}

// Unregister removes the connection and returns its record so the caller
// can trigger leave notifications exactly once. A second call for the same
// id is a no-op returning ok=false, tolerating duplicate disconnect
// signals from the transport.
func (r *Registry) Unregister(id string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, id)
	return *c, true
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
