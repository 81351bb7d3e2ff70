package signaling_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/signaling"
)

var errRejected = errors.New("session: rejected")

// fakeSession implements signaling.Session and records every call in order.
type fakeSession struct {
	name string

	mu      sync.Mutex
	calls   []string
	applied []string // candidate strings passed to AddCandidate
	closed  int

	failCreate    map[webrtc.SDPType]error
	failSetLocal  error
	failSetRemote error
	failAdd       map[string]error

	// gate, when set, blocks CreateLocalDescription until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

var _ signaling.Session = (*fakeSession)(nil)

func newFakeSession(name string) *fakeSession {
	return &fakeSession{name: name}
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSession) CreateLocalDescription(ctx context.Context, typ webrtc.SDPType) (webrtc.SessionDescription, error) {
	f.record("create-" + typ.String())
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := f.failCreate[typ]; err != nil {
		return webrtc.SessionDescription{}, err
	}
	return webrtc.SessionDescription{Type: typ, SDP: fmt.Sprintf("v=0 %s %s", f.name, typ)}, nil
}

func (f *fakeSession) SetLocalDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	f.record("set-local-" + desc.Type.String())
	return f.failSetLocal
}

func (f *fakeSession) SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error {
	f.record("set-remote-" + desc.Type.String())
	return f.failSetRemote
}

func (f *fakeSession) AddCandidate(ctx context.Context, c webrtc.ICECandidateInit) error {
	f.record("add-candidate")
	if err := f.failAdd[c.Candidate]; err != nil {
		return err
	}
	f.mu.Lock()
	f.applied = append(f.applied, c.Candidate)
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Applied() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func (f *fakeSession) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// recordingSender implements signaling.Sender by capturing messages.
type recordingSender struct {
	mu   sync.Mutex
	msgs []signaling.Message
	fail error
}

func (r *recordingSender) Send(ctx context.Context, msg signaling.Message) error {
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) Messages() []signaling.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]signaling.Message(nil), r.msgs...)
}

// scriptedReceiver replays raw relay texts through the codec, then fails
// with io-style end of stream.
type scriptedReceiver struct {
	texts []string
	end   error
}

var errEndOfScript = errors.New("end of script")

func (s *scriptedReceiver) Receive(ctx context.Context) (signaling.Message, error) {
	if len(s.texts) == 0 {
		if s.end != nil {
			return signaling.Message{}, s.end
		}
		return signaling.Message{}, errEndOfScript
	}
	text := s.texts[0]
	s.texts = s.texts[1:]
	return signaling.Decode([]byte(text))
}

// mockRelay is one end of an in-memory broadcast relay. Messages sent on one
// end are delivered to the other after a random delay in [0, 20ms), so
// arrival order between messages is not guaranteed.
type mockRelay struct {
	peer  *mockRelay
	inbox chan []byte
	done  chan struct{}
	once  sync.Once
}

func mockRelays() (a, b *mockRelay) {
	a = &mockRelay{inbox: make(chan []byte, 64), done: make(chan struct{})}
	b = &mockRelay{inbox: make(chan []byte, 64), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (m *mockRelay) Send(ctx context.Context, msg signaling.Message) error {
	text, err := signaling.Encode(msg)
	if err != nil {
		return err
	}
	go func() {
		select {
		case <-time.After(time.Duration(rand.Int64N(20)) * time.Millisecond):
		case <-m.done:
			return
		}
		select {
		case m.peer.inbox <- text:
		case <-m.peer.done:
		}
	}()
	return nil
}

func (m *mockRelay) Receive(ctx context.Context) (signaling.Message, error) {
	select {
	case text := <-m.inbox:
		return signaling.Decode(text)
	case <-m.done:
		return signaling.Message{}, errEndOfScript
	case <-ctx.Done():
		return signaling.Message{}, ctx.Err()
	}
}

func (m *mockRelay) Close() { m.once.Do(func() { close(m.done) }) }
