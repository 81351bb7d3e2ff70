package app

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/1ureka/duet/internal/util"
)

// textChannel is the part of a data channel the chat needs.
type textChannel interface {
	Label() string
	Send(ctx context.Context, text string) error
	OnMessage(fn func(text string))
	OnClose(fn func())
}

// chat sends every non-empty line of in and prints every received message
// until the channel closes or ctx is done. The end of in does not end the chat.
func chat(ctx context.Context, dc textChannel, in io.Reader) error {
	closed := make(chan struct{})
	var closeOnce sync.Once
	dc.OnClose(func() {
		closeOnce.Do(func() { close(closed) })
	})

	dc.OnMessage(func(text string) {
		pterm.Println(pterm.Cyan("peer › ") + text)
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			case <-closed:
				return
			}
		}
	}()

	util.LogSuccess("chat open on %q, type a message and press enter", dc.Label())

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-closed:
			util.LogInfo("peer closed the data channel")
			return nil

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := dc.Send(ctx, text); err != nil {
				util.LogError("failed to send message: %v", err)
			}
		}
	}
}
