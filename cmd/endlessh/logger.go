package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/endlessh-go/internal/eventlog"
	"github.com/kstaniek/endlessh-go/internal/logging"
)

// eventLevel resolves the effective eventlog level: an explicit -v wins
// over whatever the config file's LogLevel key set, matching the
// flags-always-win rule used for every other setting.
func eventLevel(app *appConfig) eventlog.Level {
	if app.verbosity > 0 {
		return eventlog.Level(app.verbosity)
	}
	return app.cfg.LogLevel
}

// newEventSink builds the operator-facing ACCEPT/CLOSE/TOTALS sink: syslog
// if -s was given, stdout otherwise.
func newEventSink(app *appConfig, prog string) (eventlog.Sink, error) {
	level := eventLevel(app)
	if app.useSyslog {
		return eventlog.NewSyslog(prog, level)
	}
	return eventlog.NewStdout(os.Stdout, level), nil
}

// setupDiagnostics points the ambient slog logger at the same verbosity,
// for debug() calls inside internal/tarpit that aren't part of the wire
// log format (poll(2) and client-close tracing).
func setupDiagnostics(app *appConfig) *slog.Logger {
	lvl := slog.LevelInfo
	if eventLevel(app) >= eventlog.LevelDebug {
		lvl = slog.LevelDebug
	}
	l := logging.New("text", lvl, os.Stderr).With("app", "endlessh")
	logging.Set(l)
	return l
}
