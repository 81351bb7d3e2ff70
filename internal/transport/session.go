// Package transport adapts a pion PeerConnection to the negotiation Session
// contract and exposes its notifications as a typed event stream.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/util"
)

var (
	// ErrSessionOperation wraps every failure of a description, candidate or
	// channel operation on a Session.
	ErrSessionOperation = errors.New("session operation failed")

	// ErrSessionClosed is returned by operations on a closed Session.
	ErrSessionClosed = fmt.Errorf("%w: session closed", ErrSessionOperation)
)

const eventBufferSize = 64

// Session wraps a single PeerConnection for its whole life. It is created
// once, before any signaling traffic, and closed once.
//
// pion callbacks are turned into Events; consumers read Events until Done
// is closed.
type Session struct {
	id    string
	pc    *webrtc.PeerConnection
	stats *util.Stats

	events chan Event
	done   chan struct{}

	closeOnce sync.Once

	mu       sync.RWMutex
	pcState  webrtc.PeerConnectionState
	channels []*DataChannel
}

// NewSession creates a Session backed by a new PeerConnection. Data channel
// traffic is counted in stats, which may be nil.
func (a *API) NewSession(stats *util.Stats) (*Session, error) {
	pc, err := a.newPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("%w: new peer connection: %v", ErrSessionOperation, err)
	}
	if stats == nil {
		stats = &util.Stats{}
	}

	s := &Session{
		id:      uuid.NewString(),
		pc:      pc,
		stats:   stats,
		events:  make(chan Event, eventBufferSize),
		done:    make(chan struct{}),
		pcState: webrtc.PeerConnectionStateNew,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			util.LogDebug("session %s: candidate gathering complete", s.short())
			return
		}
		s.emit(LocalCandidate{Candidate: c.ToJSON()})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogInfo("PeerConnection state: %s", state.String())
		s.mu.Lock()
		s.pcState = state
		s.mu.Unlock()
		s.emit(ConnectionStateChanged{State: state})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		util.LogInfo("remote %s track: %s", track.Kind(), track.Codec().MimeType)
		s.emit(RemoteMedia{Track: track, Receiver: receiver})
	})

	// Channels opened by the remote peer.
	pc.OnDataChannel(func(raw *webrtc.DataChannel) {
		util.LogDebug("session %s: remote data channel %q", s.short(), raw.Label())
		s.track(newDataChannel(raw, s.stats, s.channelOpened))
	})

	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

func (s *Session) short() string { return s.id[:8] }

// Events returns the notification stream. It is never closed; stop reading
// once Done is closed.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the Session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// ConnectionState returns the last observed PeerConnection state.
func (s *Session) ConnectionState() webrtc.PeerConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pcState
}

// emit delivers e unless the Session is closed. It blocks while the event
// buffer is full.
func (s *Session) emit(e Event) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.events <- e:
	case <-s.done:
	}
}

func (s *Session) channelOpened(dc *DataChannel) {
	util.LogSuccess("data channel %q open", dc.Label())
	s.emit(DataChannelOpened{Channel: dc})
}

func (s *Session) track(dc *DataChannel) {
	s.mu.Lock()
	s.channels = append(s.channels, dc)
	s.mu.Unlock()
}

// check fails fast when ctx is already done or the Session is closed.
func (s *Session) check(ctx context.Context, op string) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSessionOperation, op, err)
	}
	return nil
}

func fail(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSessionOperation, op, err)
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// CreateLocalDescription generates an offer or an answer.
func (s *Session) CreateLocalDescription(ctx context.Context, typ webrtc.SDPType) (webrtc.SessionDescription, error) {
	op := "create " + typ.String()
	if err := s.check(ctx, op); err != nil {
		return webrtc.SessionDescription{}, err
	}

	var (
		desc webrtc.SessionDescription
		err  error
	)
	switch typ {
	case webrtc.SDPTypeOffer:
		desc, err = s.pc.CreateOffer(nil)
	case webrtc.SDPTypeAnswer:
		desc, err = s.pc.CreateAnswer(nil)
	default:
		err = fmt.Errorf("unsupported description type %q", typ)
	}
	if err != nil {
		return webrtc.SessionDescription{}, fail(op, err)
	}
	return desc, nil
}

// SetLocalDescription commits a description produced by CreateLocalDescription.
// Local candidate gathering starts here.
func (s *Session) SetLocalDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	op := "set local " + desc.Type.String()
	if err := s.check(ctx, op); err != nil {
		return err
	}
	if err := s.pc.SetLocalDescription(desc); err != nil {
		return fail(op, err)
	}
	return nil
}

// SetRemoteDescription applies the remote peer's description.
func (s *Session) SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	op := "set remote " + desc.Type.String()
	if err := s.check(ctx, op); err != nil {
		return err
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fail(op, err)
	}
	return nil
}

// AddCandidate applies a remote ICE candidate. The remote description must
// already be set.
func (s *Session) AddCandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	if err := s.check(ctx, "add candidate"); err != nil {
		return err
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		return fail("add candidate", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Media and data
// ---------------------------------------------------------------------------

// AddTrack attaches a local track. RTCP from the remote side is read and
// discarded so interceptors keep working.
func (s *Session) AddTrack(track webrtc.TrackLocal) error {
	if err := s.check(context.Background(), "add track"); err != nil {
		return err
	}
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		return fail("add track", err)
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// ReceiveVideo offers to receive video without sending any.
func (s *Session) ReceiveVideo() error {
	if err := s.check(context.Background(), "add video transceiver"); err != nil {
		return err
	}
	_, err := s.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
	if err != nil {
		return fail("add video transceiver", err)
	}
	return nil
}

// CreateDataChannel creates an ordered, reliable data channel. It must be
// called before the offer is created to be part of it. DataChannelOpened is
// emitted once it opens.
func (s *Session) CreateDataChannel(label string) (*DataChannel, error) {
	if err := s.check(context.Background(), "create data channel"); err != nil {
		return nil, err
	}
	ordered := true
	raw, err := s.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fail("create data channel", err)
	}
	dc := newDataChannel(raw, s.stats, s.channelOpened)
	s.track(dc)
	return dc, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Close tears down every data channel and the PeerConnection. Calling it
// more than once is a no-op.
func (s *Session) Close() error {
	var result *multierror.Error
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.RLock()
		channels := append([]*DataChannel(nil), s.channels...)
		s.mu.RUnlock()

		for _, dc := range channels {
			if err := dc.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := s.pc.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close peer connection: %w", err))
		}
		util.LogDebug("session %s closed", s.short())
	})
	return result.ErrorOrNil()
}
