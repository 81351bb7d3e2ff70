package signaling

// State is the negotiation state of one session.
//
// Offering side:  Idle → LocalOfferPending → LocalOfferSet → Connected
// Answering side: Idle → RemoteOfferReceived → RemoteAnswerSet → Connected
type State int

const (
	StateIdle State = iota
	StateLocalOfferPending
	StateLocalOfferSet
	StateRemoteOfferReceived
	StateRemoteAnswerSet
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocalOfferPending:
		return "local-offer-pending"
	case StateLocalOfferSet:
		return "local-offer-set"
	case StateRemoteOfferReceived:
		return "remote-offer-received"
	case StateRemoteAnswerSet:
		return "remote-answer-set"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// offering reports whether a local offer is in flight.
func (s State) offering() bool {
	return s == StateLocalOfferPending || s == StateLocalOfferSet
}
