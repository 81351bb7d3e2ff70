// Package relay is the client side of the broadcasting WebSocket relay that
// carries signaling messages between the two peers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/duet/internal/signaling"
	"github.com/1ureka/duet/internal/util"
)

// ErrClosed is returned by Send and Receive once the connection is closed.
var ErrClosed = errors.New("relay: closed")

const (
	writeWait = 10 * time.Second
	inboxSize = 64
)

// Conn is one text-frame WebSocket connection to the relay.
// Send and Receive may be called from different goroutines.
type Conn struct {
	ws  *websocket.Conn
	url string

	mu sync.Mutex // serializes writes; gorilla allows one concurrent writer

	inbox chan []byte
	quit  chan struct{} // closed by Close
	done  chan struct{} // closed when the reader exits
	err   error         // read error that ended the reader; valid after done is closed

	closeOnce sync.Once
}

var (
	_ signaling.Sender   = (*Conn)(nil)
	_ signaling.Receiver = (*Conn)(nil)
)

// Dial connects to the relay at url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay %s: %w", url, err)
	}
	util.LogInfo("relay connected: %s", url)
	return newConn(ws, url), nil
}

func newConn(ws *websocket.Conn, url string) *Conn {
	c := &Conn{
		ws:    ws,
		url:   url,
		inbox: make(chan []byte, inboxSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// readLoop pumps text frames into inbox until the socket fails.
func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			c.err = err
			return
		}
		if typ != websocket.TextMessage {
			util.LogDebug("relay: ignoring non-text frame (type %d)", typ)
			continue
		}
		select {
		case c.inbox <- data:
		case <-c.quit:
			return
		}
	}
}

// Send encodes msg and writes it as a single text frame.
func (c *Conn) Send(ctx context.Context, msg signaling.Message) error {
	text, err := signaling.Encode(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.quit:
		return ErrClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)

	if err := c.ws.WriteMessage(websocket.TextMessage, text); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	util.LogTrace("relay ← %s", text)
	return nil
}

// Receive returns the next decoded message. Text that fails to decode is
// returned as a *signaling.CodecError and the stream stays usable.
func (c *Conn) Receive(ctx context.Context) (signaling.Message, error) {
	select {
	case text := <-c.inbox:
		util.LogTrace("relay → %s", text)
		return signaling.Decode(text)
	case <-c.done:
		// Deliver what was read before the socket went away.
		select {
		case text := <-c.inbox:
			return signaling.Decode(text)
		case <-c.quit:
			return signaling.Message{}, ErrClosed
		default:
		}
		if c.err != nil && !websocket.IsCloseError(c.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return signaling.Message{}, fmt.Errorf("relay read: %w", c.err)
		}
		return signaling.Message{}, ErrClosed
	case <-c.quit:
		return signaling.Message{}, ErrClosed
	case <-ctx.Done():
		return signaling.Message{}, ctx.Err()
	}
}

// Done is closed when the connection stops receiving.
func (c *Conn) Done() <-chan struct{} { return c.done }

// URL returns the relay address this connection was dialed with.
func (c *Conn) URL() string { return c.url }

// Close sends a normal close frame and releases the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		c.mu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}
