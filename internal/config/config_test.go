package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Role != RoleAnswer {
		t.Errorf("Role = %q, want %q", cfg.Role, RoleAnswer)
	}
	if cfg.Relay.URL != "ws://localhost:8080/socket" {
		t.Errorf("Relay.URL = %q", cfg.Relay.URL)
	}
	if len(cfg.ICE.Servers) != 1 || cfg.ICE.Servers[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("ICE.Servers = %v", cfg.ICE.Servers)
	}
	if cfg.Negotiation.Timeout != 30*time.Second {
		t.Errorf("Negotiation.Timeout = %s, want 30s", cfg.Negotiation.Timeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLevel(t *testing.T) {
	testCases := []struct {
		level string
		debug bool
		want  string
	}{
		{"info", false, "info"},
		{"info", true, "debug"},
		{"warn", true, "debug"},
		{"trace", true, "trace"},
		{"trace", false, "trace"},
	}

	for _, tc := range testCases {
		c := &Config{LogLevel: tc.level, Debug: tc.debug}
		if got := c.Level(); got != tc.want {
			t.Errorf("Level(%q, debug=%v) = %q, want %q", tc.level, tc.debug, got, tc.want)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DUET_ROLE", "offer")
	t.Setenv("DUET_RELAY_URL", "wss://relay.example/socket")
	t.Setenv("DUET_NEGOTIATION_TIMEOUT", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Role != RoleOffer {
		t.Errorf("Role = %q, want %q", cfg.Role, RoleOffer)
	}
	if cfg.Relay.URL != "wss://relay.example/socket" {
		t.Errorf("Relay.URL = %q", cfg.Relay.URL)
	}
	if cfg.Negotiation.Timeout != 5*time.Second {
		t.Errorf("Negotiation.Timeout = %s, want 5s", cfg.Negotiation.Timeout)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.yaml")
	body := "role: offer\nrelay:\n  url: ws://10.0.0.1:8080/socket\nmedia:\n  video: cam.ivf\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Role != RoleOffer || cfg.Relay.URL != "ws://10.0.0.1:8080/socket" || cfg.Media.Video != "cam.ivf" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestWithFlagsOverride(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("duet", pflag.ContinueOnError)
	cfg.WithFlags(fs)
	if err := fs.Parse([]string{"--role=offer", "--stun=stun:a:1", "--stun=stun:b:2", "--timeout=0s"}); err != nil {
		t.Fatal(err)
	}

	if cfg.Role != RoleOffer {
		t.Errorf("Role = %q, want offer", cfg.Role)
	}
	if len(cfg.ICE.Servers) != 2 || cfg.ICE.Servers[1] != "stun:b:2" {
		t.Errorf("ICE.Servers = %v", cfg.ICE.Servers)
	}
	if cfg.Negotiation.Timeout != 0 {
		t.Errorf("Negotiation.Timeout = %s, want 0", cfg.Negotiation.Timeout)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad role", func(c *Config) { c.Role = "host" }, true},
		{"empty relay", func(c *Config) { c.Relay.URL = "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"negative timeout", func(c *Config) { c.Negotiation.Timeout = -time.Second }, true},
		{"half port range", func(c *Config) { c.ICE.PortMin = 5000 }, true},
		{"inverted port range", func(c *Config) { c.ICE.PortMin, c.ICE.PortMax = 6000, 5000 }, true},
		{"port range", func(c *Config) { c.ICE.PortMin, c.ICE.PortMax = 5000, 6000 }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{Role: RoleAnswer, Relay: Relay{URL: "ws://x/socket"}}
			tc.mutate(c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
