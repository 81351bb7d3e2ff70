package app

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeChannel records sent text and lets the test deliver or close.
type fakeChannel struct {
	mu        sync.Mutex
	sent      []string
	onMessage func(string)
	onClose   func()
	failSend  error
}

func (f *fakeChannel) Label() string { return "chat" }

func (f *fakeChannel) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return f.failSend
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeChannel) OnMessage(fn func(string)) { f.mu.Lock(); f.onMessage = fn; f.mu.Unlock() }
func (f *fakeChannel) OnClose(fn func())         { f.mu.Lock(); f.onClose = fn; f.mu.Unlock() }

func (f *fakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeChannel) close() {
	f.mu.Lock()
	fn := f.onClose
	f.mu.Unlock()
	fn()
}

// TestChatSendsLines verifies trimmed non-empty lines go out in order and
// the chat ends when the channel closes.
func TestChatSendsLines(t *testing.T) {
	dc := &fakeChannel{}
	in := strings.NewReader("hello\n\n  spaced  \nbye\n")

	done := make(chan error, 1)
	go func() { done <- chat(context.Background(), dc, in) }()

	want := []string{"hello", "spaced", "bye"}
	deadline := time.Now().Add(5 * time.Second)
	for len(dc.Sent()) < len(want) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := dc.Sent(); !reflect.DeepEqual(got, want) {
		t.Errorf("sent = %q, want %q", got, want)
	}

	// The end of input alone does not end the chat.
	select {
	case err := <-done:
		t.Fatalf("chat returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	dc.close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("chat = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not end after close")
	}
}

// TestChatSurvivesSendFailure verifies a failed send is reported, not fatal.
func TestChatSurvivesSendFailure(t *testing.T) {
	dc := &fakeChannel{failSend: errors.New("not open")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- chat(ctx, dc, strings.NewReader("one\ntwo\n")) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("chat = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("chat did not end on cancel")
	}
}
