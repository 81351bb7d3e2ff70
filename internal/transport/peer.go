package transport

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/duet/internal/util"
)

// PeerConfig configures the pion API every Session is built from.
type PeerConfig struct {
	// ICEServers are STUN/TURN URLs. Empty gathers host candidates only.
	ICEServers []string

	// PortMin and PortMax restrict the ephemeral ICE UDP ports when both are set.
	PortMin uint16
	PortMax uint16

	// Verbose forwards pion's trace/debug/info output to the logger.
	Verbose bool
}

// API builds PeerConnections with default codecs and interceptors and the
// pion logger bridged onto ours.
type API struct {
	api  *webrtc.API
	conf webrtc.Configuration
}

// NewAPI prepares the media engine, interceptors and setting engine for cfg.
func NewAPI(cfg PeerConfig) (*API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{LoggerFactory: util.PionLoggerFactory{Verbose: cfg.Verbose}}
	if cfg.PortMin > 0 && cfg.PortMax > 0 {
		if err := s.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
			return nil, fmt.Errorf("ICE port range: %w", err)
		}
	}

	conf := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}

	return &API{
		api:  webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		conf: conf,
	}, nil
}

func (a *API) newPeerConnection() (*webrtc.PeerConnection, error) {
	return a.api.NewPeerConnection(a.conf)
}
