package room

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_AssignRoomOnce(t *testing.T) {
	r := NewRegistry()
	id := r.Register()

	if err := r.AssignRoom(id, "r1", "Alice"); err != nil {
		t.Fatalf("first assign failed: %v", err)
	}
	if err := r.AssignRoom(id, "r2", "Alice"); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("second assign: got %v, want ErrAlreadyInRoom", err)
	}

	roomID, name, ok := r.Membership(id)
	if !ok || roomID != "r1" || name != "Alice" {
		t.Fatalf("membership = (%q, %q, %v), want (r1, Alice, true)", roomID, name, ok)
	}
}

func TestRegistry_AssignRoomUnknownConnection(t *testing.T) {
	r := NewRegistry()
	if err := r.AssignRoom("no-such-id", "r1", "Alice"); !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("got %v, want ErrUnknownConnection", err)
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	id := r.Register()
	if err := r.AssignRoom(id, "r1", "Alice"); err != nil {
		t.Fatal(err)
	}

	c, ok := r.Unregister(id)
	if !ok || c.RoomID != "r1" {
		t.Fatalf("unregister = (%+v, %v), want room r1", c, ok)
	}
	if _, ok := r.Unregister(id); ok {
		t.Fatalf("duplicate unregister must be a no-op")
	}
	if r.Len() != 0 {
		t.Fatalf("registry should be empty, has %d", r.Len())
	}
}

func TestRegistry_UnjoinedMembership(t *testing.T) {
	r := NewRegistry()
	id := r.Register()

	roomID, _, ok := r.Membership(id)
	if !ok || roomID != "" {
		t.Fatalf("membership before join = (%q, %v), want empty room id", roomID, ok)
	}
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id := r.Register()
				// Duplicate disconnect signals from the transport.
				r.Unregister(id)
				r.Unregister(id)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Fatalf("registry should drain to empty, has %d", r.Len())
	}
}
