// Duet: CLI entry point.
//
// Two duet processes connected to the same broadcasting WebSocket relay
// negotiate one WebRTC session: one side offers, the other answers. Once
// connected they exchange optional IVF video and chat over a data channel.
//
// Settings come from duet.yaml, DUET_* environment variables and flags, in
// increasing order of precedence.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/pflag"

	"github.com/1ureka/duet/internal/app"
	"github.com/1ureka/duet/internal/config"
	"github.com/1ureka/duet/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}

	if err := util.SetLogLevel(cfg.Level()); err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}

	pterm.Info.Println("Duet v" + version)
	pterm.Println()
	util.LogInfo("role: %s, relay: %s", cfg.Role, cfg.Relay.URL)

	if err := app.Run(ctx, cfg, os.Stdin); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("session closed")
}

// loadConfig finds --config first, loads the file and environment, then
// applies the remaining flags on top.
func loadConfig(args []string) (*config.Config, error) {
	pre := pflag.NewFlagSet("duet", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	path := pre.String("config", "", "")
	_ = pre.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet("duet", pflag.ContinueOnError)
	fs.String("config", *path, "Config file (default: duet.yaml in . or ./configs)")
	cfg.WithFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
