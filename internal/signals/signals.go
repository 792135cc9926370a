// Package signals latches the tarpit's three lifecycle signals: shutdown,
// config reload, and stats dump. Each signal does nothing but set a flag;
// the event loop consumes the flags at the top of every iteration. The
// latch is driven by a goroutine reading from signal.Notify, with the
// "set here, consumed once there" contract kept in atomics.
package signals

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Latch holds the running/reload/dumpstats flags examined at the top of
// every event-loop iteration.
type Latch struct {
	running   atomic.Bool
	reload    atomic.Bool
	dumpStats atomic.Bool
}

// NewLatch returns a latch in the running state.
func NewLatch() *Latch {
	l := &Latch{}
	l.running.Store(true)
	return l
}

// Running reports whether the loop should keep iterating.
func (l *Latch) Running() bool { return l.running.Load() }

// Stop latches shutdown (SIGTERM/SIGINT).
func (l *Latch) Stop() { l.running.Store(false) }

// RequestReload latches a pending config reload (SIGHUP).
func (l *Latch) RequestReload() { l.reload.Store(true) }

// ConsumeReload reports and clears a pending reload, atomically.
func (l *Latch) ConsumeReload() bool { return l.reload.CompareAndSwap(true, false) }

// RequestDumpStats latches a pending stats dump (SIGUSR1).
func (l *Latch) RequestDumpStats() { l.dumpStats.Store(true) }

// ConsumeDumpStats reports and clears a pending dump, atomically.
func (l *Latch) ConsumeDumpStats() bool { return l.dumpStats.CompareAndSwap(true, false) }

// Watch installs handlers for SIGTERM, SIGINT, SIGHUP and SIGUSR1, ignores
// SIGPIPE (so a broken pipe surfaces as a write error, never a signal), and
// calls wake after latching each signal so a blocked readiness wait can be
// interrupted promptly (see internal/tarpit's self-pipe). The returned func
// stops watching and must be called once during shutdown.
func Watch(latch *Latch, wake func()) (stop func()) {
	signal.Ignore(syscall.SIGPIPE)

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGUSR1)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case s := <-sigCh:
				switch s {
				case syscall.SIGTERM, syscall.SIGINT:
					latch.Stop()
				case syscall.SIGHUP:
					latch.RequestReload()
				case syscall.SIGUSR1:
					latch.RequestDumpStats()
				}
				if wake != nil {
					wake()
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
