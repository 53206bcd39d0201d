package collector

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// writeTimeout bounds a single outbound message.
const writeTimeout = 5 * time.Second

// Conn is an authenticated session with the collection server.
// Reads return the sensor stream; writes are serialized.
type Conn struct {
	conn    net.Conn
	userID  string
	pending []byte

	writeMu sync.Mutex
}

// Dial connects to addr and authenticates as userID. The timeout bounds the
// dial and the handshake separately.
func Dial(ctx context.Context, addr, userID string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c, err := NewConn(conn, userID, timeout)
	if err != nil {
		return nil, fmt.Errorf("authenticate with %s: %w", addr, err)
	}
	return c, nil
}

// NewConn authenticates over an established connection. The connection is
// closed if the handshake fails.
func NewConn(conn net.Conn, userID string, timeout time.Duration) (*Conn, error) {
	pending, err := authenticate(conn, userID, timeout)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Conn{
		conn:    conn,
		userID:  userID,
		pending: pending,
	}, nil
}

// UserID returns the id this session authenticated as.
func (c *Conn) UserID() string {
	return c.userID
}

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Read returns bytes left over from the handshake first, then reads the connection.
// Not safe for concurrent reads.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	return c.conn.Read(p)
}

// Write sends p with a write deadline.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, err
	}
	return c.conn.Write(p)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
