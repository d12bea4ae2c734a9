package network

import (
	"net"
	"time"
)

// TimeoutConn drops connections that stay idle longer than Timeout by
// pushing the deadline forward on every read and write
type TimeoutConn struct {
	net.Conn
	Timeout time.Duration
}

// NewTimeoutConn creates new TimeoutConn. The timeout is fixed for the
// connection lifetime; transport readers touch the conn concurrently.
func NewTimeoutConn(conn net.Conn, timeout time.Duration) *TimeoutConn {
	return &TimeoutConn{
		Conn:    conn,
		Timeout: timeout,
	}
}

// Read reads data from connection with deadline
func (t *TimeoutConn) Read(b []byte) (int, error) {
	if t.Timeout != 0 {
		t.Conn.SetDeadline(time.Now().Add(t.Timeout))
	}
	return t.Conn.Read(b)
}

// Write writes data to connection with deadline
func (t *TimeoutConn) Write(b []byte) (int, error) {
	if t.Timeout != 0 {
		t.Conn.SetDeadline(time.Now().Add(t.Timeout))
	}
	return t.Conn.Write(b)
}
