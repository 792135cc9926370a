// Package eventlog emits the tarpit's operator-facing wire-format lines:
// ACCEPT, CLOSE, TOTALS and configuration changes. It is a variant of two
// sinks sharing one formatting contract — stdout (timestamp-prefixed) or
// syslog (timestamps supplied by the syslog daemon) — chosen once at
// startup, never swapped at runtime.
package eventlog

import (
	"fmt"
	"io"
	"log/syslog"
	"sync"
	"time"
)

// Level controls sink verbosity: higher is more verbose.
type Level int

const (
	LevelNone Level = iota
	LevelInfo
	LevelDebug
)

// ParseLevel accepts the 0..2 range used by the config file's LogLevel key.
func ParseLevel(v int) (Level, bool) {
	if v < int(LevelNone) || v > int(LevelDebug) {
		return LevelNone, false
	}
	return Level(v), true
}

// Sink is the common contract for the stdout and syslog emitters.
type Sink interface {
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
	SetLevel(Level)
}

type stdoutSink struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
}

// NewStdout builds a sink that writes "<RFC3339-ish timestamp> <message>\n" lines.
func NewStdout(w io.Writer, level Level) Sink {
	return &stdoutSink{w: w, level: level}
}

func (s *stdoutSink) emit(lvl Level, format string, args ...any) {
	s.mu.Lock()
	level := s.level
	s.mu.Unlock()
	if level < lvl {
		return
	}
	now := time.Now().UTC()
	msg := fmt.Sprintf(format, args...)
	s.mu.Lock()
	fmt.Fprintf(s.w, "%s.%03dZ %s\n", now.Format("2006-01-02T15:04:05"), now.Nanosecond()/1_000_000, msg)
	s.mu.Unlock()
}

func (s *stdoutSink) Infof(format string, args ...any)  { s.emit(LevelInfo, format, args...) }
func (s *stdoutSink) Debugf(format string, args ...any) { s.emit(LevelDebug, format, args...) }
func (s *stdoutSink) SetLevel(l Level) {
	s.mu.Lock()
	s.level = l
	s.mu.Unlock()
}

type syslogSink struct {
	mu    sync.Mutex
	w     *syslog.Writer
	level Level
}

// NewSyslog opens a connection to the local syslog daemon, tagged with prog.
func NewSyslog(prog string, level Level) (Sink, error) {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_NOTICE, prog)
	if err != nil {
		return nil, fmt.Errorf("open syslog: %w", err)
	}
	return &syslogSink{w: w, level: level}, nil
}

func (s *syslogSink) Infof(format string, args ...any) {
	s.mu.Lock()
	level := s.level
	s.mu.Unlock()
	if level < LevelInfo {
		return
	}
	_ = s.w.Info(fmt.Sprintf(format, args...))
}

func (s *syslogSink) Debugf(format string, args ...any) {
	s.mu.Lock()
	level := s.level
	s.mu.Unlock()
	if level < LevelDebug {
		return
	}
	_ = s.w.Debug(fmt.Sprintf(format, args...))
}

func (s *syslogSink) SetLevel(l Level) {
	s.mu.Lock()
	s.level = l
	s.mu.Unlock()
}

// Close releases the syslog connection, if any. Stdout sinks need no teardown.
func Close(s Sink) error {
	if ss, ok := s.(*syslogSink); ok {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		return ss.w.Close()
	}
	return nil
}
