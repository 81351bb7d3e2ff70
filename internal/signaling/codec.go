package signaling

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a Message into relay text.
func Encode(msg Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Event, err)
	}
	return b, nil
}

// Decode deserializes relay text into a Message. It fails with a *CodecError
// matching ErrMalformed when text is not a JSON object with a string event,
// and ErrUnknownEvent when the event is not offer, answer or candidate.
// The payload is not inspected.
func Decode(text []byte) (Message, error) {
	var env struct {
		Event *string         `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(text, &env); err != nil {
		return Message{}, &CodecError{Kind: ErrMalformed, Err: err}
	}
	if env.Event == nil {
		return Message{}, &CodecError{Kind: ErrMalformed, Err: fmt.Errorf("missing event")}
	}

	kind := Kind(*env.Event)
	if !kind.Known() {
		return Message{}, &CodecError{Kind: ErrUnknownEvent, Event: *env.Event}
	}
	return Message{Event: kind, Data: env.Data}, nil
}
