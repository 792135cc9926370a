package tarpit

import "sync/atomic"

// Stats accumulates the process's lifetime counters. Fields are
// atomic.Int64 so the metrics HTTP handler (running on its own goroutine)
// can read them without ever taking a lock on the event loop.
type Stats struct {
	connects     atomic.Int64
	milliseconds atomic.Int64
	bytesSent    atomic.Int64
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats { return &Stats{} }

// AddConnect records one accepted connection.
func (s *Stats) AddConnect() { s.connects.Add(1) }

// AddClosed folds a finished client's lifetime into the totals. Its bytes
// were already counted write by write via AddBytesSent.
func (s *Stats) AddClosed(elapsedMS int64) {
	s.milliseconds.Add(elapsedMS)
}

// AddBytesSent records bytes written to a still-open client.
func (s *Stats) AddBytesSent(n int64) { s.bytesSent.Add(n) }

// Connects returns the lifetime accepted-connection count.
func (s *Stats) Connects() int64 { return s.connects.Load() }

// BytesSent returns the lifetime bytes-written count.
func (s *Stats) BytesSent() int64 { return s.bytesSent.Load() }

// Totals is one TOTALS log line's worth of data: connects, cumulative
// milliseconds across every client that has ever closed plus every client
// still enrolled (elapsed so far, as of now), and bytes sent.
type Totals struct {
	Connects     int64
	Milliseconds int64
	BytesSent    int64
}

// Snapshot folds the given FIFO's in-flight clients into the closed-client
// totals.
func (s *Stats) Snapshot(now int64, fifo *FIFO) Totals {
	ms := s.milliseconds.Load()
	if fifo != nil {
		fifo.Each(func(c *Client) {
			ms += now - c.ConnectMS
		})
	}
	return Totals{
		Connects:     s.connects.Load(),
		Milliseconds: ms,
		BytesSent:    s.bytesSent.Load(),
	}
}
