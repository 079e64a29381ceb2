package httpserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxmeet/signaling-relay/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	s := New(cfg, testLogger(), BuildInfo{Commit: "abc123"})
	s.ready.Store(true)
	return s
}

func TestHealthAndVersionRoutes(t *testing.T) {
	s := newTestServer(t, config.Config{})

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/healthz status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	var build BuildInfo
	if err := json.NewDecoder(rec.Body).Decode(&build); err != nil || build.Commit != "abc123" {
		t.Fatalf("/version = %+v, err=%v", build, err)
	}
}

func TestReadyzReflectsReadiness(t *testing.T) {
	s := New(config.Config{}, testLogger(), BuildInfo{})

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not-ready /readyz status = %d", rec.Code)
	}

	s.ready.Store(true)
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready /readyz status = %d", rec.Code)
	}
}

func TestIceRouteAppliesOriginPolicy(t *testing.T) {
	s := newTestServer(t, config.Config{AllowedOrigins: []string{"https://meet.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/ice", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ice", nil)
	req.Header.Set("Origin", "https://meet.example.com")
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("allowed origin status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://meet.example.com" {
		t.Fatalf("ACAO = %q", got)
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijackCalled bool
	conn         net.Conn
}

func (r *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.hijackCalled = true
	var buf bytes.Buffer
	return r.conn, bufio.NewReadWriter(bufio.NewReader(&buf), bufio.NewWriter(&buf)), nil
}

func TestStatusWriterForwardsHijack(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder(), conn: c1}
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	conn, _, err := sw.Hijack()
	if err != nil {
		t.Fatalf("hijack: %v", err)
	}
	if conn != c1 || !rec.hijackCalled {
		t.Fatalf("hijack not delegated to the underlying writer")
	}
	if !sw.hijacked {
		t.Fatalf("status writer did not record the hijack")
	}
}

func TestStatusWriterHijackUnsupported(t *testing.T) {
	// httptest.ResponseRecorder does not implement http.Hijacker.
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := sw.Hijack(); err == nil {
		t.Fatalf("expected an error from a non-hijackable writer")
	}
	if sw.hijacked {
		t.Fatalf("failed hijack must not be recorded")
	}
}

func TestNormalizeOrigin(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://Meet.Example.com", "https://meet.example.com", true},
		{"http://localhost:3000", "http://localhost:3000", true},
		{"https://example.com:443", "https://example.com", true},
		{"http://example.com:80/", "http://example.com", true},
		{"null", "null", true},
		{"example.com", "", false},
		{"https://user:pw@example.com", "", false},
		{"https://example.com/path", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeOrigin(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NormalizeOrigin(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestOriginAllowed(t *testing.T) {
	if !OriginAllowed("https://a.example.com", "", []string{"*"}) {
		t.Errorf("wildcard should allow anything")
	}
	if OriginAllowed("https://b.example.com", "", []string{"https://a.example.com"}) {
		t.Errorf("unlisted origin should be rejected")
	}
	if !OriginAllowed("https://relay.example.com", "relay.example.com", nil) {
		t.Errorf("empty allowlist should permit same-host origins")
	}
	if OriginAllowed("https://other.example.com", "relay.example.com", nil) {
		t.Errorf("empty allowlist should reject cross-host origins")
	}
}
