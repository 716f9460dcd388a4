// Package bus multiplexes many independent consumers over one websocket
// connection to the robot controller, routing messages by namespace.
package bus

import "fmt"

const (
	// SystemNamespace carries subscription control messages only.
	SystemNamespace = "system"

	TypeSubscribeToNamespace     = "subscribeToNamespace"
	TypeUnsubscribeFromNamespace = "unsubscribeFromNamespace"
)

// Message is a single namespace/type/payload triple exchanged over the wire.
// The zero value is not a valid message; use NewMessage.
type Message struct {
	namespace string
	msgType   string
	payload   string
}

// NewMessage builds a Message. payload may be empty.
func NewMessage(namespace, msgType, payload string) (Message, error) {
	if namespace == "" {
		return Message{}, ErrEmptyNamespace
	}
	if msgType == "" {
		return Message{}, fmt.Errorf("%w (namespace %q)", ErrEmptyType, namespace)
	}
	return Message{namespace: namespace, msgType: msgType, payload: payload}, nil
}

func (m Message) Namespace() string { return m.namespace }
func (m Message) Type() string      { return m.msgType }
func (m Message) Payload() string   { return m.payload }

// Preview returns a short snippet of the payload for logging.
func (m Message) Preview() string {
	preview := m.payload
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return preview
}

func (m Message) String() string {
	return fmt.Sprintf("%s/%s (%d bytes)", m.namespace, m.msgType, len(m.payload))
}

func controlMessage(msgType, namespace string) Message {
	return Message{namespace: SystemNamespace, msgType: msgType, payload: namespace}
}
