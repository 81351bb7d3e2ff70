// Package signaling implements the offer/answer/candidate negotiation that
// turns two independent local session descriptions into one PeerConnection.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Kind identifies the kind of signaling message.
type Kind string

const (
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindCandidate Kind = "candidate"
)

// Known reports whether k is one of the three wire events.
func (k Kind) Known() bool {
	switch k {
	case KindOffer, KindAnswer, KindCandidate:
		return true
	}
	return false
}

// Message is the JSON envelope exchanged over the relay.
// Data holds a SessionDescription for offer/answer and an ICECandidateInit
// for candidate; it is left raw until the Negotiator validates it.
type Message struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewOffer wraps a local offer description.
func NewOffer(desc webrtc.SessionDescription) (Message, error) {
	return newMessage(KindOffer, desc)
}

// NewAnswer wraps a local answer description.
func NewAnswer(desc webrtc.SessionDescription) (Message, error) {
	return newMessage(KindAnswer, desc)
}

// NewCandidate wraps a locally gathered ICE candidate.
func NewCandidate(c webrtc.ICECandidateInit) (Message, error) {
	return newMessage(KindCandidate, c)
}

func newMessage(kind Kind, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Message{Event: kind, Data: data}, nil
}

// Description parses Data as a session description whose type tag must agree
// with Event.
func (m Message) Description() (webrtc.SessionDescription, error) {
	var want webrtc.SDPType
	switch m.Event {
	case KindOffer:
		want = webrtc.SDPTypeOffer
	case KindAnswer:
		want = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %q carries no session description", ErrInvalidPayload, m.Event)
	}

	var raw struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(m.Data, &raw); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, m.Event, err)
	}
	if webrtc.NewSDPType(raw.Type) != want {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %q message with description type %q", ErrInvalidPayload, m.Event, raw.Type)
	}
	if raw.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %q message with empty sdp", ErrInvalidPayload, m.Event)
	}
	return webrtc.SessionDescription{Type: want, SDP: raw.SDP}, nil
}

// Candidate parses Data as an ICE candidate.
func (m Message) Candidate() (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	if m.Event != KindCandidate {
		return c, fmt.Errorf("%w: %q carries no candidate", ErrInvalidPayload, m.Event)
	}
	if err := json.Unmarshal(m.Data, &c); err != nil {
		return c, fmt.Errorf("%w: candidate: %v", ErrInvalidPayload, err)
	}
	if c.Candidate == "" {
		return c, fmt.Errorf("%w: candidate with empty candidate string", ErrInvalidPayload)
	}
	return c, nil
}
