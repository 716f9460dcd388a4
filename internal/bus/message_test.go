package bus

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMessage_DefaultsPayload(t *testing.T) {
	m, err := NewMessage("telemetry", "update", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Namespace() != "telemetry" || m.Type() != "update" || m.Payload() != "" {
		t.Errorf("unexpected message: %+v", m)
	}
}

func TestNewMessage_RequiresNamespaceAndType(t *testing.T) {
	if _, err := NewMessage("", "update", "x"); !errors.Is(err, ErrEmptyNamespace) {
		t.Errorf("expected ErrEmptyNamespace, got %v", err)
	}
	if _, err := NewMessage("telemetry", "", "x"); !errors.Is(err, ErrEmptyType) {
		t.Errorf("expected ErrEmptyType, got %v", err)
	}
}

func TestMessage_StructuralEquality(t *testing.T) {
	a, _ := NewMessage("gamepad", "state", "{}")
	b, _ := NewMessage("gamepad", "state", "{}")
	c, _ := NewMessage("gamepad", "state", "[]")
	if a != b {
		t.Error("expected equal messages to compare equal")
	}
	if a == c {
		t.Error("expected messages with different payloads to differ")
	}
}

func TestMessage_Preview(t *testing.T) {
	m, _ := NewMessage("log", "line", strings.Repeat("x", 200))
	if got := m.Preview(); len(got) != 83 || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected preview %q", got)
	}
}
