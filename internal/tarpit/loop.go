//go:build linux

package tarpit

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/endlessh-go/internal/eventlog"
	"github.com/kstaniek/endlessh-go/internal/logging"
	"github.com/kstaniek/endlessh-go/internal/signals"
)

// Hooks lets an optional observer (the Prometheus metrics package) learn
// about loop events without the loop importing metrics itself. Every field
// is optional; nil hooks are simply skipped.
type Hooks struct {
	OnAccept      func()
	OnAcceptError func(AcceptAction)
	OnClose       func(elapsedMS, bytesSent int64)
	OnBytesSent   func(n int64)
	OnReload      func()
	OnRebind      func()
	OnClamp       func(maxClients int)
	OnFIFOLen     func(n int)
}

func (h *Hooks) accept() {
	if h != nil && h.OnAccept != nil {
		h.OnAccept()
	}
}
func (h *Hooks) acceptError(a AcceptAction) {
	if h != nil && h.OnAcceptError != nil {
		h.OnAcceptError(a)
	}
}
func (h *Hooks) close(ms, bytes int64) {
	if h != nil && h.OnClose != nil {
		h.OnClose(ms, bytes)
	}
}
func (h *Hooks) bytesSent(n int64) {
	if h != nil && h.OnBytesSent != nil {
		h.OnBytesSent(n)
	}
}
func (h *Hooks) reload() {
	if h != nil && h.OnReload != nil {
		h.OnReload()
	}
}
func (h *Hooks) rebind() {
	if h != nil && h.OnRebind != nil {
		h.OnRebind()
	}
}
func (h *Hooks) clamp(n int) {
	if h != nil && h.OnClamp != nil {
		h.OnClamp(n)
	}
}
func (h *Hooks) fifoLen(n int) {
	if h != nil && h.OnFIFOLen != nil {
		h.OnFIFOLen(n)
	}
}

// Loop is the single-threaded accept/drip/reload event loop. Every field is
// touched only from the goroutine that calls Run: there are no locks here
// because there is exactly one owner, matching the core invariant of the
// system this implements.
type Loop struct {
	cfg        Config
	configPath string

	listener *Listener
	waker    *Waker
	latch    *signals.Latch
	fifo     *FIFO
	stats    *Stats
	sink     eventlog.Sink
	rng      *RNG
	hooks    *Hooks
}

// NewLoop assembles a loop ready to Run. The caller is responsible for
// having already created the listener and waker and for installing signal
// handling with signals.Watch(latch, waker.Wake).
func NewLoop(cfg Config, configPath string, listener *Listener, waker *Waker, latch *signals.Latch, sink eventlog.Sink, hooks *Hooks) *Loop {
	return &Loop{
		cfg:        cfg,
		configPath: configPath,
		listener:   listener,
		waker:      waker,
		latch:      latch,
		fifo:       NewFIFO(),
		stats:      NewStats(),
		sink:       sink,
		rng:        NewRNG(NowMS()),
		hooks:      hooks,
	}
}

// Stats exposes the loop's lifetime counters, for a metrics scrape handler
// running on another goroutine.
func (l *Loop) Stats() *Stats { return l.stats }

// FIFOLen reports the number of currently enrolled clients. Safe to call
// concurrently only for a coarse gauge reading; it is not synchronized.
func (l *Loop) FIFOLen() int { return l.fifo.Len() }

// Run drives the loop until the latch's running flag is cleared (SIGTERM or
// SIGINT), then drains every enrolled client and logs final totals.
func (l *Loop) Run() error {
	defer func() {
		l.fifo.Drain(func(c *Client) {
			l.destroyClient(c)
		})
		l.logTotals()
	}()

	for l.latch.Running() {
		if l.latch.ConsumeReload() {
			l.doReload()
		}
		if l.latch.ConsumeDumpStats() {
			l.logTotals()
		}

		timeoutMS := l.drip()

		if err := l.wait(timeoutMS); err != nil {
			return err
		}
	}
	return nil
}

// drip pops every client whose send_next has arrived, writes one banner
// line to each, and re-enrolls it at the tail with a fresh deadline. It
// returns the poll timeout: -1 (block indefinitely) if the queue is empty,
// or the milliseconds until the new head is due.
func (l *Loop) drip() int {
	timeout := -1
	now := NowMS()
	for l.fifo.Len() > 0 {
		head := l.fifo.Head()
		if head.SendNext > now {
			timeout = int(head.SendNext - now)
			break
		}
		c := l.fifo.Pop()
		if l.sendLine(c) {
			c.SendNext = now + int64(l.cfg.DelayMS)
			l.fifo.Append(c)
		}
	}
	l.hooks.fifoLen(l.fifo.Len())
	return timeout
}

// sendLine writes one random banner line to c. It returns true if c is
// still usable (the write succeeded or would merely block) and false if c
// was torn down.
func (l *Loop) sendLine(c *Client) bool {
	var buf [MaxLineBuf]byte
	n := RandLine(buf[:], l.cfg.MaxLineLength, l.rng)

	for {
		written, err := unix.Write(c.FD(), buf[:n])
		if err != nil {
			switch ClassifyWriteError(err) {
			case WriteRetry:
				continue
			case WriteWouldBlock:
				return true
			default:
				l.destroyClient(c)
				return false
			}
		}
		c.BytesSent += int64(written)
		l.stats.AddBytesSent(int64(written))
		l.hooks.bytesSent(int64(written))
		return true
	}
}

// wait blocks in poll(2) on the waker, and on the listener too if there is
// room for another client. EINTR is absorbed (the caller simply runs
// another iteration); any other poll failure, and a fatal accept error,
// come back wrapped and end the loop.
func (l *Loop) wait(timeoutMS int) error {
	fds := []unix.PollFd{
		{Fd: int32(l.waker.FD()), Events: unix.POLLIN},
		{Fd: int32(l.listener.FD()), Events: unix.POLLIN},
	}
	if l.fifo.Len() >= l.cfg.MaxClients {
		fds[1].Fd = -1 // negative fd: ignored by poll(2)
	}

	logging.L().Debug("poll", "nfds", len(fds), "timeout", timeoutMS)
	n, err := unix.Poll(fds, timeoutMS)
	logging.L().Debug("poll result", "n", n)
	if err != nil {
		if err == unix.EINTR {
			logging.L().Debug("poll: EINTR")
			return nil
		}
		return fmt.Errorf("%w: %v", ErrPoll, err)
	}

	if fds[0].Revents&unix.POLLIN != 0 {
		l.waker.Drain()
	}
	if fds[1].Revents&unix.POLLIN != 0 {
		return l.acceptOne()
	}
	return nil
}

// acceptOne accepts exactly one pending connection and either enrolls it or
// handles the error per the accept-error taxonomy. A fatal classification
// ends the loop.
func (l *Loop) acceptOne() error {
	fd, ip, port, err := l.listener.Accept()
	l.stats.AddConnect()
	l.hooks.accept()
	if err != nil {
		action := ClassifyAcceptError(err)
		l.hooks.acceptError(action)
		switch action {
		case AcceptClamp:
			l.selfClamp()
		case AcceptWarnContinue:
			fmt.Fprintf(os.Stderr, "endlessh: warning: %s\n", err)
		default:
			return fmt.Errorf("%w: %v", ErrAccept, err)
		}
		return nil
	}

	now := NowMS()
	c := &Client{
		fd:        fd,
		IP:        ip,
		Port:      port,
		ConnectMS: now,
		SendNext:  now + int64(l.cfg.DelayMS),
	}
	l.fifo.Append(c)
	l.hooks.fifoLen(l.fifo.Len())
	l.sink.Infof("ACCEPT host=%s port=%d fd=%d n=%d/%d",
		c.IP, c.Port, c.FD(), l.fifo.Len(), l.cfg.MaxClients)
	return nil
}

// selfClamp lowers MaxClients to the current FIFO length after accept(2)
// ran out of descriptors (EMFILE/ENFILE), and logs the new limit.
func (l *Loop) selfClamp() {
	l.cfg.MaxClients = l.fifo.Len()
	l.hooks.clamp(l.cfg.MaxClients)
	l.sink.Infof("MaxClients %d", l.cfg.MaxClients)
}

// destroyClient closes a client's socket, logs CLOSE, and folds its
// lifetime into the running totals.
func (l *Loop) destroyClient(c *Client) {
	logging.L().Debug("close", "fd", c.FD())
	dt := NowMS() - c.ConnectMS
	l.sink.Infof("CLOSE host=%s port=%d fd=%d time=%d.%03d bytes=%d",
		c.IP, c.Port, c.FD(), dt/1000, dt%1000, c.BytesSent)
	l.stats.AddClosed(dt)
	l.hooks.close(dt, c.BytesSent)
	l.hooks.fifoLen(l.fifo.Len())
	unix.Close(c.FD())
}

// doReload reloads the config file (soft-fail: bad values are logged and
// left at their previous setting, never fatal on a running process) and
// rebinds the listener only if the port or bind family actually changed.
func (l *Loop) doReload() {
	oldPort, oldFamily := l.cfg.Port, l.cfg.BindFamily
	if err := l.cfg.Load(l.configPath, false, func(msg string) {
		logging.L().Warn(msg)
	}); err != nil {
		logging.L().Warn("config reload failed", "error", err)
	}
	l.cfg.Log(l.sink)
	l.hooks.reload()

	if l.cfg.Port != oldPort || l.cfg.BindFamily != oldFamily {
		_ = l.listener.Close()
		ln, err := NewListener(l.cfg.Port, l.cfg.BindFamily)
		if err != nil {
			logging.L().Error("rebind failed", "error", err)
			return
		}
		l.listener = ln
		l.hooks.rebind()
	}
}

// logTotals logs a TOTALS line covering every closed client plus the
// in-flight elapsed time of every client still enrolled.
func (l *Loop) logTotals() {
	t := l.stats.Snapshot(NowMS(), l.fifo)
	l.sink.Infof("TOTALS connects=%d seconds=%d.%03d bytes=%d",
		t.Connects, t.Milliseconds/1000, t.Milliseconds%1000, t.BytesSent)
}
