// Package config holds the peer configuration: file + environment via fig,
// command-line overrides via pflag.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
	"github.com/pterm/pterm"
	"github.com/spf13/pflag"

	"github.com/1ureka/duet/internal/util"
)

// EnvPrefix is prepended to every environment override, e.g. DUET_RELAY_URL.
const EnvPrefix = "DUET"

// Role represents which side of the negotiation this process plays.
type Role string

const (
	RoleOffer  Role = "offer"
	RoleAnswer Role = "answer"
)

// Config stores every parameter of a peer process.
type Config struct {
	Role     Role   `fig:"role" default:"answer"`
	LogLevel string `fig:"log_level" default:"info"`
	Debug    bool   `fig:"debug"` // shorthand for log_level debug

	Relay       Relay       `fig:"relay"`
	ICE         ICE         `fig:"ice"`
	Negotiation Negotiation `fig:"negotiation"`
	Media       Media       `fig:"media"`
	Metrics     Metrics     `fig:"metrics"`
}

// Relay is the signaling relay endpoint.
type Relay struct {
	URL string `fig:"url" default:"ws://localhost:8080/socket"`
}

// ICE configures connectivity discovery.
type ICE struct {
	Servers []string `fig:"servers" default:"[stun:stun.l.google.com:19302]"`
	PortMin uint16   `fig:"port_min"`
	PortMax uint16   `fig:"port_max"`
}

func (i *ICE) HasPortRange() bool { return i.PortMin > 0 && i.PortMax > 0 }

// Negotiation bounds the offer/answer exchange.
type Negotiation struct {
	Timeout time.Duration `fig:"timeout" default:"30s"`
}

// Media selects the local video source and the optional remote recording.
type Media struct {
	Video  string `fig:"video"`  // IVF (VP8) file sent as local video; empty disables
	Record string `fig:"record"` // IVF file receiving the remote video; empty discards
}

// Metrics configures the status/metrics HTTP server.
type Metrics struct {
	Addr string `fig:"addr"` // e.g. ":9100"; empty disables
}

// Load reads the config file at path (or duet.yaml in the usual dirs when
// path is empty) and applies DUET_* environment overrides. A missing default
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	opts := []fig.Option{fig.UseEnv(EnvPrefix)}
	if path != "" {
		opts = append(opts, fig.File(filepath.Base(path)), fig.Dirs(filepath.Dir(path)))
	} else {
		opts = append(opts, fig.File("duet.yaml"), fig.Dirs(".", "configs"))
	}

	err := fig.Load(cfg, opts...)
	if errors.Is(err, fig.ErrFileNotFound) && path == "" {
		err = fig.Load(cfg, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// WithFlags registers command-line overrides on fs, defaulting to the values
// already loaded into c.
func (c *Config) WithFlags(fs *pflag.FlagSet) {
	fs.StringVar((*string)(&c.Role), "role", string(c.Role), "Negotiation role: offer or answer")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: trace, debug, info, warn or error")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
	fs.StringVar(&c.Relay.URL, "relay", c.Relay.URL, "Relay WebSocket URL")
	fs.StringSliceVar(&c.ICE.Servers, "stun", c.ICE.Servers, "STUN/TURN server URLs")
	fs.DurationVar(&c.Negotiation.Timeout, "timeout", c.Negotiation.Timeout, "Negotiation timeout (0 waits forever)")
	fs.StringVar(&c.Media.Video, "video", c.Media.Video, "IVF file to send as local video")
	fs.StringVar(&c.Media.Record, "record", c.Media.Record, "IVF file to record the remote video into")
	fs.StringVar(&c.Metrics.Addr, "metrics", c.Metrics.Addr, "Metrics/status listen address")
}

// Level returns the log level to apply. Debug raises info and above to debug.
func (c *Config) Level() string {
	if !c.Debug {
		return c.LogLevel
	}
	if lvl, err := util.ParseLogLevel(c.LogLevel); err == nil && lvl > pterm.LogLevelDebug {
		return "debug"
	}
	return c.LogLevel
}

// Validate checks cross-field constraints after flags are parsed.
func (c *Config) Validate() error {
	switch c.Role {
	case RoleOffer, RoleAnswer:
	default:
		return fmt.Errorf("invalid role %q: must be %q or %q", c.Role, RoleOffer, RoleAnswer)
	}
	if _, err := util.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Relay.URL == "" {
		return errors.New("missing relay URL")
	}
	if c.Negotiation.Timeout < 0 {
		return fmt.Errorf("negative negotiation timeout %s", c.Negotiation.Timeout)
	}
	if (c.ICE.PortMin == 0) != (c.ICE.PortMax == 0) || c.ICE.PortMin > c.ICE.PortMax {
		return fmt.Errorf("invalid ICE port range %d-%d", c.ICE.PortMin, c.ICE.PortMax)
	}
	return nil
}
