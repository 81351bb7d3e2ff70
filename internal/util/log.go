// Package util provides the pterm-backed logger and the traffic statistics
// shared by every layer of a peer.
package util

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

var logLevels = map[string]pterm.LogLevel{
	"trace": pterm.LogLevelTrace,
	"debug": pterm.LogLevelDebug,
	"info":  pterm.LogLevelInfo,
	"warn":  pterm.LogLevelWarn,
	"error": pterm.LogLevelError,
}

// ParseLogLevel maps a level name (trace, debug, info, warn, error) to the
// pterm level. An empty name means info.
func ParseLogLevel(name string) (pterm.LogLevel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return pterm.LogLevelInfo, nil
	}
	lvl, ok := logLevels[name]
	if !ok {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// SetLogLevel sets the lowest level that is printed.
func SetLogLevel(name string) error {
	lvl, err := ParseLogLevel(name)
	if err != nil {
		return err
	}
	pterm.DefaultLogger.Level = lvl
	return nil
}

// Relay frames, one line each.
func LogTrace(format string, args ...any) {
	pterm.DefaultLogger.Trace(fmt.Sprintf(format, args...))
}

func LogDebug(format string, args ...any) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...any) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

// LogSuccess marks a negotiation or channel milestone.
func LogSuccess(format string, args ...any) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...), pterm.DefaultLogger.Args("ok", true))
}

func LogWarning(format string, args ...any) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...any) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}
