package util

import (
	"fmt"

	"github.com/pion/logging"
)

// PionLoggerFactory routes pion's internal logs (ICE, DTLS, SCTP, ...) into the
// pterm logger. pion is chatty below warn, so trace/debug/info are forwarded
// only when Verbose is set.
type PionLoggerFactory struct {
	Verbose bool
}

var _ logging.LoggerFactory = PionLoggerFactory{}

// NewLogger implements logging.LoggerFactory.
func (f PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return pionLogger{scope: scope, verbose: f.Verbose}
}

type pionLogger struct {
	scope   string
	verbose bool
}

func (p pionLogger) line(msg string) string { return fmt.Sprintf("[pion/%s] %s", p.scope, msg) }

func (p pionLogger) Trace(msg string) {
	if p.verbose {
		LogTrace("%s", p.line(msg))
	}
}

func (p pionLogger) Tracef(format string, args ...interface{}) { p.Trace(fmt.Sprintf(format, args...)) }

func (p pionLogger) Debug(msg string) {
	if p.verbose {
		LogDebug("%s", p.line(msg))
	}
}

func (p pionLogger) Debugf(format string, args ...interface{}) { p.Debug(fmt.Sprintf(format, args...)) }

func (p pionLogger) Info(msg string) {
	if p.verbose {
		LogInfo("%s", p.line(msg))
	}
}

func (p pionLogger) Infof(format string, args ...interface{}) { p.Info(fmt.Sprintf(format, args...)) }

func (p pionLogger) Warn(msg string) { LogWarning("%s", p.line(msg)) }

func (p pionLogger) Warnf(format string, args ...interface{}) { p.Warn(fmt.Sprintf(format, args...)) }

func (p pionLogger) Error(msg string) { LogError("%s", p.line(msg)) }

func (p pionLogger) Errorf(format string, args ...interface{}) { p.Error(fmt.Sprintf(format, args...)) }
