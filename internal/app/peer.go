// Package app wires the relay, the negotiator, the session and local media
// into one running peer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1ureka/duet/internal/config"
	"github.com/1ureka/duet/internal/media"
	"github.com/1ureka/duet/internal/metrics"
	"github.com/1ureka/duet/internal/relay"
	"github.com/1ureka/duet/internal/signaling"
	"github.com/1ureka/duet/internal/transport"
	"github.com/1ureka/duet/internal/util"
)

const (
	chatLabel     = "chat"
	statsInterval = 5 * time.Second
)

// Peer is one end of a call.
type Peer struct {
	cfg   *config.Config
	stdin io.Reader

	stats   *util.Stats
	metrics *metrics.Metrics

	session  *transport.Session
	source   *media.FileSource
	recorder *media.Recorder

	neg   *signaling.Negotiator
	group *errgroup.Group

	channels chan *transport.DataChannel
}

// Run executes the full peer lifecycle:
//  1. Create the session and attach local media
//  2. Connect to the relay
//  3. Serve relay messages and session events
//  4. Offer (offer role) and wait for the connection
//  5. Stream video and chat over the data channel until shutdown
func Run(ctx context.Context, cfg *config.Config, stdin io.Reader) error {
	p := &Peer{
		cfg:      cfg,
		stdin:    stdin,
		stats:    &util.Stats{},
		channels: make(chan *transport.DataChannel, 1),
	}
	p.metrics = metrics.New(p.stats)
	p.recorder = media.NewRecorder(cfg.Media.Record, p.stats)

	// ── 1. Session & media ─────────────────────────────────────────────
	if err := p.setupSession(); err != nil {
		return err
	}
	defer p.session.Close()
	if p.source != nil {
		defer p.source.Close()
	}

	// ── 2. Relay ───────────────────────────────────────────────────────
	conn, err := relay.Dial(ctx, cfg.Relay.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	p.neg = signaling.NewNegotiator(p.session, conn, signaling.Options{
		Timeout:  cfg.Negotiation.Timeout,
		Observer: p.metrics,
	})
	defer p.neg.Close()

	// ── 3. Serve ───────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	p.group = g

	g.Go(func() error { return p.serveRelay(gctx, conn) })
	g.Go(func() error { return p.pump(gctx) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return p.metrics.Serve(gctx, cfg.Metrics.Addr, p.session.ID()) })
	}
	util.StartStatsReporter(gctx, p.stats, statsInterval)

	// ── 4 & 5. Negotiate, then converse ────────────────────────────────
	g.Go(func() error {
		defer cancel()
		return p.converse(gctx)
	})

	return g.Wait()
}

// setupSession creates the session eagerly and attaches local media. An
// offering peer without its configured video cannot proceed; an answering
// peer continues receive-only.
func (p *Peer) setupSession() error {
	peerConf := transport.PeerConfig{ICEServers: p.cfg.ICE.Servers, Verbose: p.cfg.Debug}
	if p.cfg.ICE.HasPortRange() {
		peerConf.PortMin, peerConf.PortMax = p.cfg.ICE.PortMin, p.cfg.ICE.PortMax
	}
	api, err := transport.NewAPI(peerConf)
	if err != nil {
		return err
	}

	if p.cfg.Media.Video != "" {
		src, err := media.OpenIVF(p.cfg.Media.Video)
		switch {
		case err == nil:
			p.source = src
		case p.cfg.Role == config.RoleOffer:
			return err
		default:
			util.LogWarning("%v; continuing receive-only", err)
		}
	}

	p.session, err = api.NewSession(p.stats)
	if err != nil {
		if p.source != nil {
			p.source.Close()
		}
		return err
	}
	util.LogDebug("session %s created", p.session.ID())

	if p.source != nil {
		if err := p.session.AddTrack(p.source.Track()); err != nil {
			return err
		}
	} else if p.cfg.Role == config.RoleOffer {
		if err := p.session.ReceiveVideo(); err != nil {
			return err
		}
	}

	if p.cfg.Role == config.RoleOffer {
		if _, err := p.session.CreateDataChannel(chatLabel); err != nil {
			return err
		}
	}
	return nil
}

// serveRelay runs the negotiator's receive loop. Losing the relay once the
// peers are connected is not fatal.
func (p *Peer) serveRelay(ctx context.Context, conn *relay.Conn) error {
	err := p.neg.Serve(ctx, conn)
	switch {
	case ctx.Err() != nil, errors.Is(err, signaling.ErrClosed):
		return nil
	case p.neg.State() == signaling.StateConnected:
		util.LogWarning("relay lost after connecting: %v", err)
		return nil
	}
	return fmt.Errorf("relay: %w", err)
}

// pump dispatches session events until the session or ctx ends.
func (p *Peer) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.session.Done():
			return nil

		case ev := <-p.session.Events():
			switch e := ev.(type) {
			case transport.LocalCandidate:
				if err := p.neg.OnLocalCandidate(ctx, e.Candidate); err != nil && !errors.Is(err, signaling.ErrClosed) {
					util.LogWarning("failed to send local candidate: %v", err)
				}

			case transport.ConnectionStateChanged:
				if err := p.neg.OnConnectionState(e.State); err != nil {
					util.LogError("%v", err)
				}

			case transport.RemoteMedia:
				track := e.Track
				p.group.Go(func() error {
					if err := p.recorder.Consume(ctx, track); err != nil {
						util.LogWarning("remote %s: %v", track.Kind(), err)
					}
					return nil
				})

			case transport.DataChannelOpened:
				select {
				case p.channels <- e.Channel:
				default:
					util.LogDebug("ignoring extra data channel %q", e.Channel.Label())
				}
			}
		}
	}
}

// converse starts the offer when required, waits for the connection and
// runs the chat until the peer leaves or ctx ends.
func (p *Peer) converse(ctx context.Context) error {
	if p.cfg.Role == config.RoleOffer {
		if err := p.neg.StartOffer(ctx); err != nil {
			return fmt.Errorf("failed to start offer: %w", err)
		}
		util.LogInfo("offer sent, waiting for an answer...")
	} else {
		util.LogInfo("waiting for an offer...")
	}

	if err := p.neg.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	util.LogSuccess("peer connected (session %s)", p.session.ID())

	if p.source != nil {
		p.group.Go(func() error { return p.source.Stream(ctx) })
	}

	select {
	case dc := <-p.channels:
		return chat(ctx, dc, p.stdin)
	case <-ctx.Done():
		return nil
	}
}
