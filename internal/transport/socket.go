// File: internal/transport/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-independent non-blocking TCP socket. OS calls are confined to a
// descriptor implementation selected by build tags; this file owns the state
// machine, traffic counters and the close-on-error policy.

package transport

import (
	"errors"
	"net"

	"github.com/momentics/hioload-net/api"
)

// errWouldBlock is returned by descriptors when the call would suspend.
var errWouldBlock = errors.New("operation would block")

// descriptor is the minimal OS surface a Socket needs.
//
// read returns (0, nil) only for an orderly peer shutdown; "no data yet" is
// reported as errWouldBlock. Errors other than errWouldBlock are already
// rendered through sysError.
type descriptor interface {
	read(p []byte) (int, error)
	write(p []byte) (int, error)
	// connectResult probes the pending handshake with a zero timeout.
	connectResult() (done bool, err error)
	close() error
}

// Socket implements api.Socket over a descriptor.
// It is owned by exactly one caller goroutine and is not safe for
// concurrent use.
type Socket struct {
	fd     descriptor
	remote *net.TCPAddr
	state  api.ConnState
	open   bool

	totalUpload   uint64
	totalDownload uint64
}

var _ api.Socket = (*Socket)(nil)

func newSocket(fd descriptor, remote *net.TCPAddr, established bool) *Socket {
	s := &Socket{
		fd:     fd,
		remote: remote,
		state:  api.StateConnecting,
		open:   true,
	}
	if established {
		s.state = api.StateEstablished
	}
	return s
}

// Recv performs one non-blocking read.
func (s *Socket) Recv(buf []byte) (int, error) {
	if !s.open {
		return 0, closedError(api.ErrCodeRead, "recv")
	}
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := s.fd.read(buf)
	switch {
	case errors.Is(err, errWouldBlock):
		return 0, nil
	case err != nil:
		s.abort()
		return 0, err
	case n == 0:
		s.abort()
		return 0, api.NewError(api.ErrCodeRead, "connection closed by peer").WithOp("recv")
	}
	s.markEstablished()
	s.totalDownload += uint64(n)
	return n, nil
}

// Send performs one non-blocking write and returns the bytes accepted.
func (s *Socket) Send(buf []byte) (int, error) {
	if !s.open {
		return 0, closedError(api.ErrCodeSend, "send")
	}
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := s.fd.write(buf)
	if errors.Is(err, errWouldBlock) {
		return 0, nil
	}
	if err != nil {
		s.abort()
		return 0, err
	}
	if n > 0 {
		s.markEstablished()
		s.totalUpload += uint64(n)
	}
	return n, nil
}

// CheckConnected reports whether the non-blocking handshake has completed.
// A failed handshake closes the socket.
func (s *Socket) CheckConnected() (bool, error) {
	switch s.state {
	case api.StateEstablished:
		return true, nil
	case api.StateConnecting:
	default:
		return false, closedError(api.ErrCodeConnect, "connect")
	}
	done, err := s.fd.connectResult()
	if err != nil {
		s.fd.close()
		s.open = false
		s.state = api.StateFailed
		return false, err
	}
	if done {
		s.state = api.StateEstablished
	}
	return done, nil
}

// Close releases the descriptor. Subsequent calls are no-ops.
func (s *Socket) Close() error {
	if !s.open {
		return nil
	}
	s.open = false
	if s.state != api.StateFailed {
		s.state = api.StateClosed
	}
	return s.fd.close()
}

func (s *Socket) IsOpen() bool { return s.open }
func (s *Socket) State() api.ConnState { return s.state }
func (s *Socket) RemoteAddr() net.Addr { return s.remote }
func (s *Socket) TotalUpload() uint64 { return s.totalUpload }
func (s *Socket) TotalDownload() uint64 { return s.totalDownload }

func (s *Socket) markEstablished() {
	if s.state == api.StateConnecting {
		s.state = api.StateEstablished
	}
}

// abort closes after an I/O failure; the close error is secondary.
func (s *Socket) abort() {
	_ = s.Close()
}

func closedError(code api.ErrorCode, op string) error {
	return api.NewError(code, "socket is closed").WithOp(op).WithCause(api.ErrSocketClosed)
}
