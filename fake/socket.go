// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the socket contracts.

package fake

import (
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-net/api"
)

// Socket is a fake implementation of api.Socket for testing.
// Queued receive data is returned chunk by chunk; an empty queue behaves
// like a non-blocking socket with no data yet.
type Socket struct {
	mu            sync.Mutex
	remote        net.Addr
	state         api.ConnState
	sendBuffer    [][]byte
	recvBuffer    [][]byte
	peerClosed    bool
	sendError     error
	recvError     error
	sendLimit     int
	totalUpload   uint64
	totalDownload uint64
	closeCalls    int
}

var _ api.Socket = (*Socket)(nil)

// NewSocket creates an established fake socket.
func NewSocket(address string, port int) *Socket {
	return &Socket{
		remote: &net.TCPAddr{IP: net.ParseIP(address), Port: port},
		state:  api.StateEstablished,
	}
}

// Recv implements api.Socket.Recv.
func (s *Socket) Recv(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOpen() {
		return 0, fmt.Errorf("%w: %w", api.ErrRead, api.ErrSocketClosed)
	}
	if s.recvError != nil {
		s.closeLocked()
		return 0, fmt.Errorf("%w: %w", api.ErrRead, s.recvError)
	}
	if len(s.recvBuffer) == 0 {
		if s.peerClosed {
			s.closeLocked()
			return 0, fmt.Errorf("%w: connection closed by peer", api.ErrRead)
		}
		return 0, nil
	}
	chunk := s.recvBuffer[0]
	n := copy(buf, chunk)
	if n < len(chunk) {
		s.recvBuffer[0] = chunk[n:]
	} else {
		s.recvBuffer = s.recvBuffer[1:]
	}
	s.totalDownload += uint64(n)
	return n, nil
}

// Send implements api.Socket.Send.
func (s *Socket) Send(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOpen() {
		return 0, fmt.Errorf("%w: %w", api.ErrSend, api.ErrSocketClosed)
	}
	if s.sendError != nil {
		s.closeLocked()
		return 0, fmt.Errorf("%w: %w", api.ErrSend, s.sendError)
	}
	n := len(buf)
	if s.sendLimit > 0 && n > s.sendLimit {
		n = s.sendLimit
	}
	bufCopy := make([]byte, n)
	copy(bufCopy, buf)
	s.sendBuffer = append(s.sendBuffer, bufCopy)
	s.totalUpload += uint64(n)
	return n, nil
}

// CheckConnected implements api.Socket.CheckConnected.
func (s *Socket) CheckConnected() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case api.StateEstablished:
		return true, nil
	case api.StateConnecting:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", api.ErrConnect, api.ErrSocketClosed)
	}
}

// Close implements api.Socket.Close.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Socket) closeLocked() {
	if s.isOpen() {
		s.closeCalls++
		s.state = api.StateClosed
	}
}

func (s *Socket) isOpen() bool {
	return s.state == api.StateConnecting || s.state == api.StateEstablished
}

func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOpen()
}

func (s *Socket) State() api.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) RemoteAddr() net.Addr { return s.remote }

func (s *Socket) TotalUpload() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUpload
}

func (s *Socket) TotalDownload() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalDownload
}

// AddRecvData queues data to be returned by subsequent Recv calls.
func (s *Socket) AddRecvData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	s.recvBuffer = append(s.recvBuffer, dataCopy)
}

// ClosePeer simulates an orderly shutdown by the remote end once queued
// data has been consumed.
func (s *Socket) ClosePeer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerClosed = true
}

// SetRecvError configures a hard failure on the next Recv.
func (s *Socket) SetRecvError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvError = err
}

// SetSendError configures a hard failure on the next Send.
func (s *Socket) SetSendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendError = err
}

// SetSendLimit caps the bytes accepted per Send to simulate partial writes.
func (s *Socket) SetSendLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLimit = n
}

// SetConnecting puts the socket back into the handshake state.
func (s *Socket) SetConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = api.StateConnecting
}

// GetSentData returns all data that has been sent via Send.
func (s *Socket) GetSentData() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make([][]byte, len(s.sendBuffer))
	copy(sent, s.sendBuffer)
	return sent
}

// CloseCalls reports how many times the socket actually transitioned to closed.
func (s *Socket) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Dialer is a fake api.Dialer handing out fake sockets.
type Dialer struct {
	mu      sync.Mutex
	sockets []*Socket
	dialErr error
}

var _ api.Dialer = (*Dialer)(nil)

// NewDialer creates a fake dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// Dial implements api.Dialer.
func (d *Dialer) Dial(address string, port int) (api.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	s := NewSocket(address, port)
	d.sockets = append(d.sockets, s)
	return s, nil
}

// SetDialError makes subsequent Dial calls fail with err (nil to reset).
func (d *Dialer) SetDialError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

// Sockets returns every socket handed out so far.
func (d *Dialer) Sockets() []*Socket {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Socket, len(d.sockets))
	copy(out, d.sockets)
	return out
}
