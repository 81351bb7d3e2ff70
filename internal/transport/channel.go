package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/util"
)

const (
	HighWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	LowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this
)

// ErrChannelNotOpen is returned by Send before the channel opens or after it
// closes. It matches ErrSessionOperation.
var ErrChannelNotOpen = fmt.Errorf("%w: data channel not open", ErrSessionOperation)

// DataChannel wraps an ordered pion data channel carrying text messages,
// with backpressure on the send side.
type DataChannel struct {
	raw   *webrtc.DataChannel
	stats *util.Stats

	sendReady chan struct{}
	opened    chan struct{}
	openOnce  sync.Once

	msgMu   sync.Mutex // held while delivering so messages keep their order
	onMsg   func(text string)
	backlog []string // received before OnMessage was called
}

// newDataChannel wraps raw and calls onOpen once when it opens.
func newDataChannel(raw *webrtc.DataChannel, stats *util.Stats, onOpen func(*DataChannel)) *DataChannel {
	dc := &DataChannel{
		raw:       raw,
		stats:     stats,
		sendReady: make(chan struct{}, 1),
		opened:    make(chan struct{}),
	}

	raw.SetBufferedAmountLowThreshold(uint64(LowWaterMark))
	raw.OnBufferedAmountLow(func() {
		select {
		case dc.sendReady <- struct{}{}:
		default:
		}
	})

	raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		dc.stats.AddRecv(len(msg.Data))
		dc.deliver(string(msg.Data))
	})

	raw.OnOpen(func() {
		dc.openOnce.Do(func() {
			close(dc.opened)
			if onOpen != nil {
				onOpen(dc)
			}
		})
	})

	return dc
}

// Label returns the channel label.
func (dc *DataChannel) Label() string { return dc.raw.Label() }

// Opened is closed once the channel is open.
func (dc *DataChannel) Opened() <-chan struct{} { return dc.opened }

// Send writes text as one message. It blocks under backpressure until the
// buffer drains below the low water mark or ctx is done.
func (dc *DataChannel) Send(ctx context.Context, text string) error {
	if state := dc.raw.ReadyState(); state != webrtc.DataChannelStateOpen {
		return fmt.Errorf("%w: %q is %s", ErrChannelNotOpen, dc.Label(), state)
	}

	if dc.raw.BufferedAmount() > uint64(HighWaterMark) {
		select {
		case <-dc.sendReady:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := dc.raw.SendText(text); err != nil {
		return fail("send on "+dc.Label(), err)
	}
	dc.stats.AddSent(len(text))
	return nil
}

func (dc *DataChannel) deliver(text string) {
	dc.msgMu.Lock()
	defer dc.msgMu.Unlock()
	if dc.onMsg == nil {
		dc.backlog = append(dc.backlog, text)
		return
	}
	dc.onMsg(text)
}

// OnMessage registers the handler for inbound text. Messages that arrived
// before the first call are handed to fn first, in order. Binary messages
// are decoded as UTF-8 text as well. fn must not call OnMessage.
func (dc *DataChannel) OnMessage(fn func(text string)) {
	dc.msgMu.Lock()
	defer dc.msgMu.Unlock()
	if len(dc.backlog) > 0 {
		util.LogDebug("data channel %q: delivering %d early message(s)", dc.Label(), len(dc.backlog))
	}
	for _, text := range dc.backlog {
		fn(text)
	}
	dc.backlog = nil
	dc.onMsg = fn
}

// OnClose registers a handler called when the channel closes.
func (dc *DataChannel) OnClose(fn func()) { dc.raw.OnClose(fn) }

// Close closes the channel.
func (dc *DataChannel) Close() error {
	if err := dc.raw.Close(); err != nil {
		return fmt.Errorf("close data channel %q: %w", dc.Label(), err)
	}
	return nil
}
