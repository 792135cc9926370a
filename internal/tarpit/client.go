package tarpit

// Client is a single tarpitted connection's state. It is created on
// successful accept, mutated only by the event loop, and destroyed when a
// write fails non-recoverably, the peer hangs up, or shutdown tears the
// FIFO down. While enrolled it is exclusively owned by the FIFO.
type Client struct {
	fd int

	IP        string
	Port      int
	ConnectMS int64
	SendNext  int64
	BytesSent int64

	next *Client
}

// FD returns the underlying socket descriptor.
func (c *Client) FD() int { return c.fd }
