package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/util"
)

// Session is the connection object the Negotiator drives. Calls on one
// Session are never issued concurrently by the Negotiator.
type Session interface {
	CreateLocalDescription(ctx context.Context, typ webrtc.SDPType) (webrtc.SessionDescription, error)
	SetLocalDescription(ctx context.Context, desc webrtc.SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error
	AddCandidate(ctx context.Context, c webrtc.ICECandidateInit) error
	Close() error
}

// Sender delivers outbound messages to the relay.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Receiver yields inbound relay messages. Undecodable messages are returned
// as *CodecError and do not end the stream.
type Receiver interface {
	Receive(ctx context.Context) (Message, error)
}

// Observer is notified of negotiation activity. Implementations must be
// safe for concurrent use. StateChanged calls are serialized in state order
// and must not call back into Close.
type Observer interface {
	MessageSent(kind Kind)
	MessageReceived(kind Kind)
	MessageDropped(reason string)
	CandidateQueued()
	CandidateApplied()
	StateChanged(s State)
}

// Options tunes a Negotiator. The zero value is usable.
type Options struct {
	// Timeout bounds Wait. Zero waits until ctx is done.
	Timeout time.Duration

	// Observer receives activity notifications. Nil disables them.
	Observer Observer

	// OnError is called with protocol-order and session failures hit while
	// serving relay messages or session notifications.
	OnError func(error)
}

// Negotiator owns one Session and runs the offer/answer/candidate exchange
// for it. All operations are serialized; outbound messages are emitted in
// the order the operations complete.
type Negotiator struct {
	session Session
	out     Sender
	opts    Options

	opMu     sync.Mutex // held for the whole of every operation, across Session calls
	notifyMu sync.Mutex // orders state changes with their Observer notification

	mu        sync.RWMutex
	state     State
	hasRemote bool
	pending   candidateQueue
	endErr    error

	connected     chan struct{}
	connectedOnce sync.Once
	ended         chan struct{}
	endOnce       sync.Once
}

// NewNegotiator creates a Negotiator in StateIdle. The Negotiator takes
// ownership of session and closes it on Close.
func NewNegotiator(session Session, out Sender, opts Options) *Negotiator {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Negotiator{
		session:   session,
		out:       out,
		opts:      opts,
		state:     StateIdle,
		connected: make(chan struct{}),
		ended:     make(chan struct{}),
	}
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

// State returns the current negotiation state. It may be called while an
// operation is in flight.
func (n *Negotiator) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Pending returns the number of queued remote candidates.
func (n *Negotiator) Pending() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pending.len()
}

// Connected returns a channel closed once StateConnected is reached.
func (n *Negotiator) Connected() <-chan struct{} { return n.connected }

func (n *Negotiator) setState(s State) {
	n.notifyMu.Lock()
	defer n.notifyMu.Unlock()

	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		return
	}
	prev := n.state
	n.state = s
	n.mu.Unlock()

	if prev != s {
		util.LogDebug("negotiation: %s → %s", prev, s)
		n.opts.Observer.StateChanged(s)
	}
	if s == StateConnected {
		n.connectedOnce.Do(func() { close(n.connected) })
	}
}

// expect fails with ErrClosed or a ProtocolOrderError unless the state is want.
func (n *Negotiator) expect(op string, want State) error {
	st := n.State()
	if st == StateClosed {
		return ErrClosed
	}
	if st != want {
		return &ProtocolOrderError{Op: op, State: st}
	}
	return nil
}

// end records a terminal error for Wait.
func (n *Negotiator) end(err error) {
	n.endOnce.Do(func() {
		n.mu.Lock()
		n.endErr = err
		n.mu.Unlock()
		close(n.ended)
	})
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// StartOffer creates and commits a local offer, then emits it.
// Valid only in StateIdle. On a creation or commit failure the state returns
// to StateIdle and nothing is emitted.
func (n *Negotiator) StartOffer(ctx context.Context) error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	if err := n.expect("start-offer", StateIdle); err != nil {
		return err
	}
	n.setState(StateLocalOfferPending)

	offer, err := n.session.CreateLocalDescription(ctx, webrtc.SDPTypeOffer)
	if err != nil {
		n.setState(StateIdle)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := n.session.SetLocalDescription(ctx, offer); err != nil {
		n.setState(StateIdle)
		return fmt.Errorf("set local offer: %w", err)
	}
	n.setState(StateLocalOfferSet)

	msg, err := NewOffer(offer)
	if err != nil {
		return err
	}
	return n.emit(ctx, msg)
}

// OnOffer applies a remote offer, answers it and drains the candidate queue.
// Valid only in StateIdle. While a local offer is in flight the remote offer
// is rejected with ErrGlare and the local description is kept. A failing
// step leaves the state reached before it.
func (n *Negotiator) OnOffer(ctx context.Context, offer webrtc.SessionDescription) (err error) {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	if st := n.State(); st.offering() {
		return &ProtocolOrderError{Op: "offer", State: st, Glare: true}
	}
	if err := n.expect("offer", StateIdle); err != nil {
		return err
	}

	if err := n.session.SetRemoteDescription(ctx, offer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	n.markRemote()
	n.setState(StateRemoteOfferReceived)

	// Queued candidates are owed to the session as soon as the remote
	// description exists, whatever happens to the answer.
	defer func() {
		if derr := n.drain(ctx); derr != nil {
			err = multierror.Append(err, derr).ErrorOrNil()
		}
	}()

	answer, err := n.session.CreateLocalDescription(ctx, webrtc.SDPTypeAnswer)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := n.session.SetLocalDescription(ctx, answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	n.setState(StateRemoteAnswerSet)

	msg, err := NewAnswer(answer)
	if err != nil {
		return err
	}
	return n.emit(ctx, msg)
}

// OnAnswer applies the remote answer to our offer and drains the candidate
// queue. Valid only in StateLocalOfferSet.
func (n *Negotiator) OnAnswer(ctx context.Context, answer webrtc.SessionDescription) error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	if err := n.expect("answer", StateLocalOfferSet); err != nil {
		return err
	}

	if err := n.session.SetRemoteDescription(ctx, answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	n.markRemote()
	n.setState(StateConnected)

	return n.drain(ctx)
}

// OnCandidate applies a remote candidate, or queues it when no remote
// description has been set yet. It never changes the negotiation state.
func (n *Negotiator) OnCandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		return ErrClosed
	}
	if !n.hasRemote {
		n.pending.push(c)
		n.mu.Unlock()
		n.opts.Observer.CandidateQueued()
		util.LogDebug("negotiation: candidate queued until remote description is set")
		return nil
	}
	n.mu.Unlock()

	if err := n.session.AddCandidate(ctx, c); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	n.opts.Observer.CandidateApplied()
	return nil
}

// OnLocalCandidate emits a locally gathered candidate. Gathering outlives the
// offer/answer exchange, so this is valid in every state but StateClosed.
func (n *Negotiator) OnLocalCandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	n.opMu.Lock()
	defer n.opMu.Unlock()

	if n.State() == StateClosed {
		return ErrClosed
	}

	msg, err := NewCandidate(c)
	if err != nil {
		return err
	}
	return n.emit(ctx, msg)
}

// OnConnectionState follows the session's transport state. The answering
// side reaches StateConnected here; a failed transport ends Wait.
func (n *Negotiator) OnConnectionState(s webrtc.PeerConnectionState) error {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		n.opMu.Lock()
		defer n.opMu.Unlock()
		if n.State() == StateRemoteAnswerSet {
			n.setState(StateConnected)
		}
		return nil

	case webrtc.PeerConnectionStateFailed:
		err := fmt.Errorf("%w: peer connection %s in state %s", ErrConnectionFailed, s, n.State())
		n.end(err)
		return err
	}
	return nil
}

// markRemote records that the session now has a remote description.
func (n *Negotiator) markRemote() {
	n.mu.Lock()
	n.hasRemote = true
	n.mu.Unlock()
}

// drain applies every queued candidate once, in receipt order, and discards
// the queue. A failing candidate does not stop the rest.
func (n *Negotiator) drain(ctx context.Context) error {
	n.mu.Lock()
	items := n.pending.take()
	n.mu.Unlock()

	if len(items) > 0 {
		util.LogDebug("negotiation: applying %d queued candidate(s)", len(items))
	}

	var result *multierror.Error
	for _, c := range items {
		if err := n.session.AddCandidate(ctx, c); err != nil {
			result = multierror.Append(result, fmt.Errorf("add queued candidate: %w", err))
			continue
		}
		n.opts.Observer.CandidateApplied()
	}
	return result.ErrorOrNil()
}

// emit sends msg on the relay.
func (n *Negotiator) emit(ctx context.Context, msg Message) error {
	if err := n.out.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Event, err)
	}
	n.opts.Observer.MessageSent(msg.Event)
	return nil
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// Handle validates msg's payload against its event and runs the matching
// operation.
func (n *Negotiator) Handle(ctx context.Context, msg Message) error {
	n.opts.Observer.MessageReceived(msg.Event)

	switch msg.Event {
	case KindOffer:
		desc, err := msg.Description()
		if err != nil {
			return err
		}
		return n.OnOffer(ctx, desc)

	case KindAnswer:
		desc, err := msg.Description()
		if err != nil {
			return err
		}
		return n.OnAnswer(ctx, desc)

	case KindCandidate:
		c, err := msg.Candidate()
		if err != nil {
			return err
		}
		return n.OnCandidate(ctx, c)
	}
	return &CodecError{Kind: ErrUnknownEvent, Event: string(msg.Event)}
}

// Serve handles inbound relay messages until ctx is done, the Negotiator is
// closed, or in fails with something other than a *CodecError. Undecodable
// messages and invalid payloads are dropped with a diagnostic; protocol and
// session errors are reported and leave the state untouched.
func (n *Negotiator) Serve(ctx context.Context, in Receiver) error {
	for {
		msg, err := in.Receive(ctx)
		if err != nil {
			var ce *CodecError
			if errors.As(err, &ce) {
				n.drop(err)
				continue
			}
			return err
		}

		err = n.Handle(ctx, msg)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrUnknownEvent):
			n.drop(err)
		case errors.Is(err, ErrClosed):
			return err
		default:
			n.report(err)
		}
	}
}

func (n *Negotiator) drop(err error) {
	util.LogWarning("dropping relay message: %v", err)
	n.opts.Observer.MessageDropped(dropReason(err))
}

// report surfaces a non-fatal negotiation error to the operator.
func (n *Negotiator) report(err error) {
	util.LogError("negotiation: %v", err)
	if n.opts.OnError != nil {
		n.opts.OnError(err)
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	}
	return "other"
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Wait blocks until StateConnected, a transport failure, Close, the
// negotiation timeout, or ctx is done, whichever comes first.
func (n *Negotiator) Wait(ctx context.Context) error {
	var timeout <-chan time.Time
	if n.opts.Timeout > 0 {
		t := time.NewTimer(n.opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-n.connected:
		return nil
	case <-n.ended:
		n.mu.RLock()
		defer n.mu.RUnlock()
		return n.endErr
	case <-timeout:
		return fmt.Errorf("%w after %s in state %s", ErrNegotiationTimeout, n.opts.Timeout, n.State())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close moves the Negotiator to StateClosed and tears the Session down.
// Calling it more than once is a no-op.
func (n *Negotiator) Close() error {
	n.notifyMu.Lock()
	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		n.notifyMu.Unlock()
		return nil
	}
	n.state = StateClosed
	n.pending.take()
	n.mu.Unlock()
	n.opts.Observer.StateChanged(StateClosed)
	n.notifyMu.Unlock()

	n.end(ErrClosed)
	return n.session.Close()
}

type nopObserver struct{}

func (nopObserver) MessageSent(Kind)      {}
func (nopObserver) MessageReceived(Kind)  {}
func (nopObserver) MessageDropped(string) {}
func (nopObserver) CandidateQueued()      {}
func (nopObserver) CandidateApplied()     {}
func (nopObserver) StateChanged(State)    {}
