package bus

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// frame is the JSON shape of a message on the wire.
type frame struct {
	Namespace      string `json:"namespace"`
	Type           string `json:"type"`
	EncodedPayload string `json:"encodedPayload"`
}

// EncodeFrame serializes m into a JSON text frame with a base64 payload.
func EncodeFrame(m Message) ([]byte, error) {
	return json.Marshal(frame{
		Namespace:      m.namespace,
		Type:           m.msgType,
		EncodedPayload: base64.StdEncoding.EncodeToString([]byte(m.payload)),
	})
}

// DecodeFrame parses a JSON text frame. A missing or empty encodedPayload
// decodes to an empty payload.
func DecodeFrame(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var payload []byte
	if f.EncodedPayload != "" {
		var err error
		payload, err = base64.StdEncoding.DecodeString(f.EncodedPayload)
		if err != nil {
			return Message{}, fmt.Errorf("%w: payload: %v", ErrMalformedFrame, err)
		}
	}

	m, err := NewMessage(f.Namespace, f.Type, string(payload))
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return m, nil
}
