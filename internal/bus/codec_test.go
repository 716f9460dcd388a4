package bus

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCodec_PayloadRoundTrip(t *testing.T) {
	payloads := []string{
		"",
		"42",
		`{"x":1,"y":[2,3]}`,
		"héllo wörld",
		"ロボット",
		"line1\nline2\x00tail",
	}
	for _, p := range payloads {
		m, err := NewMessage("telemetry", "update", p)
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		data, err := EncodeFrame(m)
		if err != nil {
			t.Fatalf("EncodeFrame(%q): %v", p, err)
		}
		got, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("DecodeFrame(%q): %v", p, err)
		}
		if got != m {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
		}
	}
}

func TestEncodeFrame_WireShape(t *testing.T) {
	m, _ := NewMessage("telemetry", "update", "42")
	data, err := EncodeFrame(m)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("frame is not a JSON object: %v", err)
	}
	if raw["namespace"] != "telemetry" || raw["type"] != "update" {
		t.Errorf("unexpected header fields: %v", raw)
	}
	if raw["encodedPayload"] != "NDI=" {
		t.Errorf("expected base64 payload NDI=, got %q", raw["encodedPayload"])
	}
}

func TestDecodeFrame_MissingPayload(t *testing.T) {
	for _, data := range []string{
		`{"namespace":"gamepad","type":"state"}`,
		`{"namespace":"gamepad","type":"state","encodedPayload":""}`,
	} {
		m, err := DecodeFrame([]byte(data))
		if err != nil {
			t.Fatalf("DecodeFrame(%s): %v", data, err)
		}
		if m.Payload() != "" {
			t.Errorf("expected empty payload, got %q", m.Payload())
		}
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	cases := map[string]string{
		"bad json":          `{"namespace":`,
		"missing namespace": `{"type":"state"}`,
		"missing type":      `{"namespace":"gamepad"}`,
		"bad base64":        `{"namespace":"gamepad","type":"state","encodedPayload":"***"}`,
	}
	for name, data := range cases {
		if _, err := DecodeFrame([]byte(data)); !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("%s: expected ErrMalformedFrame, got %v", name, err)
		}
	}
}
