// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the raw TCP socket abstraction (Socket) and its factory (Dialer).
// Every call is non-blocking: it either completes immediately or reports
// that the caller must retry on a later tick.

package api

import "net"

// ConnState is the lifecycle state of a Socket.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateEstablished
	StateFailed
	StateClosed
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Socket abstracts one non-blocking TCP connection.
type Socket interface {
	// Recv reads up to len(buf) bytes. It returns 0 with a nil error when no
	// data is available yet. A peer close or hard failure closes the socket
	// and returns an error matching ErrRead.
	Recv(buf []byte) (int, error)

	// Send writes buf and returns the number of bytes accepted by the OS,
	// which may be fewer than len(buf). A hard failure closes the socket and
	// returns an error matching ErrSend.
	Send(buf []byte) (int, error)

	// CheckConnected probes the non-blocking handshake without waiting.
	// It returns true once the connection is established.
	CheckConnected() (bool, error)

	// Close releases the OS descriptor. Close is terminal and idempotent.
	Close() error

	IsOpen() bool
	State() ConnState
	RemoteAddr() net.Addr
	TotalUpload() uint64
	TotalDownload() uint64
}

// Dialer creates connected (or connecting) sockets.
type Dialer interface {
	Dial(address string, port int) (Socket, error)
}
