package transport

import "github.com/pion/webrtc/v4"

// Event is a notification from a Session. It is one of LocalCandidate,
// RemoteMedia, DataChannelOpened or ConnectionStateChanged.
type Event interface {
	sessionEvent()
}

// LocalCandidate carries a locally gathered ICE candidate to be sent to the
// remote peer. Gathering continues after the offer/answer exchange.
type LocalCandidate struct {
	Candidate webrtc.ICECandidateInit
}

// RemoteMedia reports a track the remote peer started sending.
type RemoteMedia struct {
	Track    *webrtc.TrackRemote
	Receiver *webrtc.RTPReceiver
}

// DataChannelOpened reports that a data channel, created locally or by the
// remote peer, is open and ready to send.
type DataChannelOpened struct {
	Channel *DataChannel
}

// ConnectionStateChanged reports a PeerConnection state transition.
type ConnectionStateChanged struct {
	State webrtc.PeerConnectionState
}

func (LocalCandidate) sessionEvent()         {}
func (RemoteMedia) sessionEvent()            {}
func (DataChannelOpened) sessionEvent()      {}
func (ConnectionStateChanged) sessionEvent() {}
