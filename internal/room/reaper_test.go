package room

import (
	"context"
	"testing"
	"time"
)

func TestReaper_SweepsLeakedRooms(t *testing.T) {
	s := NewStore()
	s.mu.Lock()
	s.rooms["leaked"] = &roomState{}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewReaper(s, 5*time.Millisecond, nil, nil).Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for s.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("reaper never swept the leaked room")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("reaper did not stop on context cancel")
	}
}
