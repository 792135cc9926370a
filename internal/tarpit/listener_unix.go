//go:build linux

package tarpit

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listener is a raw TCP listener built directly on golang.org/x/sys/unix
// syscalls rather than net.Listener. A net.Listener's Accept hands the fd
// to the runtime network poller; the event loop's invariant is a single
// goroutine owning one poll(2) wait over exactly the fds it cares about, so
// the socket is created, bound and accepted by hand.
type Listener struct {
	fd     int
	family BindFamily
}

// NewListener creates, binds and starts listening on port for the given
// family. BindDual opens a single IPv6 socket with IPV6_V6ONLY disabled, so
// IPv4 peers arrive as mapped addresses and one socket handles both.
func NewListener(port int, family BindFamily) (*Listener, error) {
	domain := unix.AF_INET6
	if family == BindV4 {
		domain = unix.AF_INET
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	// Best-effort options: failure here is not fatal.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if domain == unix.AF_INET6 {
		v6only := 0
		if family == BindV6 {
			v6only = 1
		}
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, v6only)
	}

	if domain == unix.AF_INET {
		addr := &unix.SockaddrInet4{Port: port}
		err = unix.Bind(fd, addr)
	} else {
		addr := &unix.SockaddrInet6{Port: port}
		err = unix.Bind(fd, addr)
	}
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Listener{fd: fd, family: family}, nil
}

// FD returns the listening socket descriptor, for use in a poll(2) set.
func (l *Listener) FD() int { return l.fd }

// Close closes the listening socket.
func (l *Listener) Close() error { return unix.Close(l.fd) }

// Port returns the bound port, resolving an ephemeral (0) request to its
// assigned value — used by tests that bind :0.
func (l *Listener) Port() (int, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0, err
	}
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return s.Port, nil
	case *unix.SockaddrInet6:
		return s.Port, nil
	default:
		return 0, fmt.Errorf("unexpected sockaddr type %T", sa)
	}
}

// Accept accepts one pending connection, shrinks its receive buffer to the
// smallest size the kernel allows (the remote's send window stays tiny and
// local resource usage stays low), puts the socket in non-blocking mode,
// and reports the peer's address.
func (l *Listener) Accept() (fd int, ip string, port int, err error) {
	connFD, sa, err := unix.Accept(l.fd)
	if err != nil {
		return -1, "", 0, err
	}

	_ = unix.SetsockoptInt(connFD, unix.SOL_SOCKET, unix.SO_RCVBUF, 1)

	if err := unix.SetNonblock(connFD, true); err != nil {
		unix.Close(connFD)
		return -1, "", 0, fmt.Errorf("setnonblock: %w", err)
	}

	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip = net.IP(s.Addr[:]).String()
		port = s.Port
	case *unix.SockaddrInet6:
		ip = net.IP(s.Addr[:]).String()
		port = s.Port
	}
	return connFD, ip, port, nil
}

// Waker is the classic self-pipe: a pipe whose read end sits in the same
// poll(2) set as the listener. Go's os/signal delivers signals over a
// channel read by an ordinary goroutine, which cannot interrupt a
// blocked poll the way POSIX signal delivery interrupts a blocked syscall
// with EINTR. Writing a byte to the pipe wakes the poll immediately;
// Drain discards whatever accumulated before the next blocking wait.
type Waker struct {
	r, w int
}

// NewWaker creates the pipe and puts both ends in non-blocking mode.
func NewWaker() (*Waker, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		return nil, fmt.Errorf("pipe2: %w", err)
	}
	return &Waker{r: fds[0], w: fds[1]}, nil
}

// FD returns the read end, to add to a poll(2) set.
func (wk *Waker) FD() int { return wk.r }

// Wake writes a single byte, waking anything blocked in poll on FD().
// Safe to call from the signal-handling goroutine concurrently with the
// event loop blocked in Poll.
func (wk *Waker) Wake() {
	var b [1]byte
	_, _ = unix.Write(wk.w, b[:])
}

// Drain reads and discards any pending wake bytes.
func (wk *Waker) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(wk.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close closes both ends of the pipe.
func (wk *Waker) Close() error {
	err1 := unix.Close(wk.r)
	err2 := unix.Close(wk.w)
	if err1 != nil {
		return err1
	}
	return err2
}
