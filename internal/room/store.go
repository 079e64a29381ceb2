// Package room holds the relay's in-memory room membership and chat state.
//
// The Store is the source of truth for which connection belongs to which
// room. All state is process-local; rooms do not survive a restart.
package room

import (
	"sync"
	"time"
)

// HistoryCap bounds the chat history kept per room. Once full, the oldest
// message is evicted on append.
const HistoryCap = 100

// Member identifies one room participant.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatMessage is one chat event as stored in a room's history. Immutable
// once appended.
type ChatMessage struct {
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Time       time.Time `json:"time"`
}

// Store maps room ids to live room state.
//
// Mutations on the same room are serialized by a per-room mutex; operations
// on different rooms do not block each other. The map itself is guarded by
// an RWMutex held only for lookup/insert/delete, never across a room
// mutation.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
}

type roomState struct {
	mu      sync.Mutex
	members []Member
	history []ChatMessage

	// gone is set (under mu) when the room has been removed from the map,
	// or is about to be. A Join that observes gone retries against a fresh
	// entry so it never lands in an orphaned room.
	gone bool
}

func NewStore() *Store {
	return &Store{rooms: make(map[string]*roomState)}
}

// Join adds m to the room, creating the room on first use. It returns the
// members present before the insertion (never including m) and a copy of
// the room's chat history. Snapshot and insertion happen atomically so a
// concurrently joining peer is neither missed nor double-counted.
//
// Joining a room that already contains m.ID is a no-op that still returns
// the snapshot; the member set never holds duplicate ids.
func (s *Store) Join(roomID string, m Member) (others []Member, history []ChatMessage) {
	for {
		s.mu.Lock()
		st, ok := s.rooms[roomID]
		if !ok {
			st = &roomState{}
			s.rooms[roomID] = st
		}
		s.mu.Unlock()

		st.mu.Lock()
		if st.gone {
			st.mu.Unlock()
			continue
		}

		others = make([]Member, 0, len(st.members))
		for _, existing := range st.members {
			if existing.ID != m.ID {
				others = append(others, existing)
			}
		}
		if !containsID(st.members, m.ID) {
			st.members = append(st.members, m)
		}
		history = append([]ChatMessage(nil), st.history...)
		st.mu.Unlock()
		return others, history
	}
}

// Leave removes connID from the room and returns the remaining members.
// When the last member leaves, the room is deleted and deleted=true is
// reported. Leaving an unknown room or a room the connection is not in is
// a no-op.
func (s *Store) Leave(roomID, connID string) (remaining []Member, deleted bool) {
	s.mu.RLock()
	st, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	st.mu.Lock()
	if st.gone {
		st.mu.Unlock()
		return nil, false
	}
	found := false
	for i, m := range st.members {
		if m.ID == connID {
			st.members = append(st.members[:i], st.members[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		st.mu.Unlock()
		return nil, false
	}
	remaining = append([]Member(nil), st.members...)
	if len(st.members) == 0 {
		st.gone = true
		deleted = true
	}
	st.mu.Unlock()

	if deleted {
		s.deleteState(roomID, st)
	}
	return remaining, deleted
}

// AppendChat appends msg to the room's history, evicting the oldest entry
// past HistoryCap. It reports false when the room no longer exists; chat to
// a dead room is discarded, not an error.
func (s *Store) AppendChat(roomID string, msg ChatMessage) bool {
	s.mu.RLock()
	st, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gone {
		return false
	}
	st.history = append(st.history, msg)
	if len(st.history) > HistoryCap {
		st.history = st.history[len(st.history)-HistoryCap:]
	}
	return true
}

// Members returns a snapshot of the room's current members in join order,
// or nil for an unknown room.
func (s *Store) Members(roomID string) []Member {
	s.mu.RLock()
	st, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gone {
		return nil
	}
	return append([]Member(nil), st.members...)
}

// SweepEmpty deletes rooms whose member set is empty and returns how many
// were removed. The primary deletion path is synchronous in Leave; this is
// a defensive pass for rooms leaked by out-of-band bugs.
//
// The emptiness check and the tombstone are taken under the room's own
// mutex, so a room joined concurrently is never deleted out from under the
// new member.
func (s *Store) SweepEmpty() int {
	s.mu.RLock()
	snapshot := make(map[string]*roomState, len(s.rooms))
	for id, st := range s.rooms {
		snapshot[id] = st
	}
	s.mu.RUnlock()

	swept := 0
	for id, st := range snapshot {
		st.mu.Lock()
		empty := !st.gone && len(st.members) == 0
		if empty {
			st.gone = true
		}
		st.mu.Unlock()

		if empty {
			s.deleteState(id, st)
			swept++
		}
	}
	return swept
}

// Len reports the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// deleteState removes the map entry only if it still points at st; a racing
// Join may already have replaced a tombstoned room with a fresh one.
func (s *Store) deleteState(roomID string, st *roomState) {
	s.mu.Lock()
	if cur, ok := s.rooms[roomID]; ok && cur == st {
		delete(s.rooms, roomID)
	}
	s.mu.Unlock()
}

func containsID(members []Member, id string) bool {
	for _, m := range members {
		if m.ID == id {
			return true
		}
	}
	return false
}
