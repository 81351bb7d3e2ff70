package signaling

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrMalformed is the CodecError kind for text that is not a wire envelope.
	ErrMalformed = errors.New("signaling: malformed message")

	// ErrUnknownEvent is the CodecError kind for an event outside offer/answer/candidate.
	ErrUnknownEvent = errors.New("signaling: unknown event")

	// ErrInvalidPayload is returned when a message's data disagrees with its event.
	ErrInvalidPayload = errors.New("signaling: invalid payload")

	// ErrProtocolOrder is returned when an operation is invoked outside its valid state.
	ErrProtocolOrder = errors.New("signaling: protocol order violation")

	// ErrGlare is returned when a remote offer arrives while a local offer is in flight.
	// It always matches ErrProtocolOrder too.
	ErrGlare = errors.New("signaling: glare")

	// ErrNegotiationTimeout is returned by Wait when Connected is not reached in time.
	ErrNegotiationTimeout = errors.New("signaling: negotiation timed out")

	// ErrConnectionFailed is reported when the session's transport fails before or after Connected.
	ErrConnectionFailed = errors.New("signaling: connection failed")

	// ErrClosed is returned by operations on a closed Negotiator.
	ErrClosed = errors.New("signaling: negotiator closed")
)

// CodecError is returned by Decode. Kind is ErrMalformed or ErrUnknownEvent.
type CodecError struct {
	Kind  error
	Event string // the offending event, for ErrUnknownEvent
	Err   error  // underlying parse error, for ErrMalformed
}

func (e *CodecError) Error() string {
	switch {
	case e.Event != "":
		return fmt.Sprintf("%v: %q", e.Kind, e.Event)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *CodecError) Is(target error) bool { return target == e.Kind }

func (e *CodecError) Unwrap() error { return e.Err }

// ProtocolOrderError reports an operation invoked in a state that does not allow it.
// The negotiation state is never changed by the rejected operation.
type ProtocolOrderError struct {
	Op    string
	State State
	Glare bool
}

func (e *ProtocolOrderError) Error() string {
	if e.Glare {
		return fmt.Sprintf("%v: remote offer rejected in state %s (local offer wins)", ErrGlare, e.State)
	}
	return fmt.Sprintf("%v: %s in state %s", ErrProtocolOrder, e.Op, e.State)
}

func (e *ProtocolOrderError) Is(target error) bool {
	return target == ErrProtocolOrder || (e.Glare && target == ErrGlare)
}
