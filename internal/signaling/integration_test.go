package signaling

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/voxmeet/signaling-relay/internal/config"
	"github.com/voxmeet/signaling-relay/internal/httpserver"
)

// Dials through the full HTTP server stack, middleware chain included,
// wired the same way the binary wires it. The upgrade must survive the
// request logger's response wrapper.
func TestUpgradeThroughHTTPServerStack(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(Config{Logger: logger})

	srv := httpserver.New(config.Config{}, logger, httpserver.BuildInfo{})
	s.RegisterRoutes(srv.Mux())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		s.Close()
		_ = srv.Close()
	})

	url := "ws://" + ln.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s through the middleware chain: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	welcome := expectEvent(t, conn, "welcome")
	if id, _ := welcome["id"].(string); id == "" {
		t.Fatalf("welcome without id: %v", welcome)
	}

	join(t, conn, "standup", "alice")
	expectEvent(t, conn, "existing_members")
	expectEvent(t, conn, "chat_history")

	sendMessage(t, conn, map[string]any{"type": "chat", "text": "through the stack"})
	event := expectEvent(t, conn, "chat_message")
	if msg, _ := event["message"].(map[string]any); msg["text"] != "through the stack" {
		t.Fatalf("chat_message = %v", event)
	}
}
