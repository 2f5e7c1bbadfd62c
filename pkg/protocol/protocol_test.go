package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/duome/duochat/pkg/model"
	"github.com/duome/duochat/pkg/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	frame, err := protocol.Encode(protocol.EventOnline, model.Identity{UserID: 2, Nickname: "bob"})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if env.Event != protocol.EventOnline {
		t.Fatalf("Decode: event mismatch want=%q got=%q", protocol.EventOnline, env.Event)
	}

	var id model.Identity
	if err := json.Unmarshal(env.Data, &id); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if diff := cmp.Diff(model.Identity{UserID: 2, Nickname: "bob"}, id); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	t.Parallel()

	tcases := map[string]string{
		"not_json":      "not json at all",
		"missing_event": `{"data": {"x": 1}}`,
		"empty":         ``,
	}
	for name, frame := range tcases {
		t.Run(name, func(t *testing.T) {
			if _, err := protocol.Decode([]byte(frame)); err == nil {
				t.Fatalf("Decode(%q): expected error, got nil", frame)
			}
		})
	}
}

func TestSignalPayloadsAreOpaque(t *testing.T) {
	t.Parallel()

	// SDP bodies must survive a relay byte-for-byte, whatever their shape.
	raw := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1"}`)
	frame, err := protocol.Encode(protocol.EventSDPOffer, protocol.SDPSignal{From: 1, SDP: raw})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}

	var sig protocol.SDPSignal
	if err := json.Unmarshal(env.Data, &sig); err != nil {
		t.Fatalf("unmarshal signal: %v", err)
	}
	if diff := cmp.Diff(string(raw), string(sig.SDP)); diff != "" {
		t.Errorf("sdp not preserved (-want +got):\n%s", diff)
	}
}

func TestMessageWireFieldNames(t *testing.T) {
	t.Parallel()

	// The browser client depends on these exact camelCase keys.
	duration := 9
	msg := model.Message{
		ID: 3, SenderID: 1, SenderName: "alice",
		Kind: model.KindAudio, Content: "/files/audio/x.webm", Duration: &duration,
	}
	frame, err := protocol.Encode(protocol.EventMessage, msg)
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	var decoded struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	for _, key := range []string{"id", "senderId", "senderName", "type", "content", "duration", "createdAt"} {
		if _, ok := decoded.Data[key]; !ok {
			t.Errorf("message payload missing key %q", key)
		}
	}
}
