package signaling

import (
	"strings"
	"testing"
)

func TestParseClientMessage(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"valid join", `{"type":"join","room":"standup","name":"alice"}`, ""},
		{"valid signal", `{"type":"signal","target":"abc","payload":{"sdp":"offer"}}`, ""},
		{"valid chat", `{"type":"chat","text":"hello"}`, ""},

		{"unknown type", `{"type":"leave"}`, "unsupported message type"},
		{"missing type", `{"room":"standup"}`, "unsupported message type"},
		{"join without name", `{"type":"join","room":"standup"}`, "missing name"},
		{"join without room", `{"type":"join","name":"alice"}`, "missing room"},
		{"join with payload", `{"type":"join","room":"r","name":"a","payload":{}}`, "unexpected fields"},
		{"signal without target", `{"type":"signal","payload":{}}`, "missing target"},
		{"signal without payload", `{"type":"signal","target":"abc"}`, "missing payload"},
		{"chat without text", `{"type":"chat"}`, "missing text"},
		{"chat with target", `{"type":"chat","text":"hi","target":"abc"}`, "unexpected fields"},
		{"unknown field", `{"type":"chat","text":"hi","color":"red"}`, "color"},
		{"trailing data", `{"type":"chat","text":"hi"}{"type":"chat","text":"again"}`, "trailing"},
		{"not json", `hello`, "invalid character"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := parseClientMessage([]byte(tc.in))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("parse: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("parsed %+v, want error containing %q", msg, tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestSignalPayloadIsOpaque(t *testing.T) {
	raw := `{"type":"signal","target":"abc","payload":{"sdp":"v=0 trickery","custom":[1,2,3]}}`
	msg, err := parseClientMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if string(msg.Payload) != `{"sdp":"v=0 trickery","custom":[1,2,3]}` {
		t.Fatalf("payload not preserved verbatim: %s", msg.Payload)
	}
}
