package tarpit

import (
	"errors"
	"syscall"
)

// Sentinel errors for wrapping so callers can classify via errors.Is.
var (
	ErrListen = errors.New("listen")
	ErrAccept = errors.New("accept")
	ErrWrite  = errors.New("conn_write")
	ErrPoll   = errors.New("poll")
)

// AcceptAction classifies what the event loop should do after a failed
// accept(2).
type AcceptAction int

const (
	// AcceptFatal means the loop must exit immediately.
	AcceptFatal AcceptAction = iota
	// AcceptWarnContinue means log and keep going: a transient condition
	// on the kernel or peer side, not ours to fix.
	AcceptWarnContinue
	// AcceptClamp means self-clamp MaxClients to the current FIFO length,
	// because the process or system fd table is exhausted.
	AcceptClamp
)

// ClassifyAcceptError maps an accept(2) errno to the action the loop
// should take: EMFILE/ENFILE clamp, ECONNABORTED/EINTR/ENOBUFS/ENOMEM/
// EPROTO warn, anything else is fatal.
func ClassifyAcceptError(err error) AcceptAction {
	switch {
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE):
		return AcceptClamp
	case errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EINTR),
		errors.Is(err, syscall.ENOBUFS),
		errors.Is(err, syscall.ENOMEM),
		errors.Is(err, syscall.EPROTO):
		return AcceptWarnContinue
	default:
		return AcceptFatal
	}
}

// WriteAction classifies the outcome of a write(2) to a tarpitted client.
type WriteAction int

const (
	// WriteOK means bytes were written. On the non-blocking socket this may
	// be fewer than requested; only the count actually written is tracked
	// and the rest of the line is not resent.
	WriteOK WriteAction = iota
	// WriteRetry means EINTR: the same write should be attempted again.
	WriteRetry
	// WriteWouldBlock means EAGAIN/EWOULDBLOCK: the client's receive
	// window is full, which is the tarpit working as intended. Leave the
	// client enrolled and try again next time it's due.
	WriteWouldBlock
	// WriteDestroy means any other error: the client must be torn down.
	WriteDestroy
)

// ClassifyWriteError maps a write(2) errno to the action sendline takes.
func ClassifyWriteError(err error) WriteAction {
	switch {
	case errors.Is(err, syscall.EINTR):
		return WriteRetry
	case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EWOULDBLOCK):
		return WriteWouldBlock
	default:
		return WriteDestroy
	}
}
