//go:build linux || darwin || freebsd || netbsd || openbsd

package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// tick polls fn until it reports done or the deadline passes.
func tick(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !fn() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestDialer_LoopbackEchoAndPeerClose(t *testing.T) {
	ln, port := listenLoopback(t)
	serverDone := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		buf := make([]byte, 4)
		if _, err := io.ReadFull(conn, buf); err != nil {
			serverDone <- err
			return
		}
		_, err = conn.Write(append([]byte("echo:"), buf...))
		conn.Close()
		serverDone <- err
	}()

	sock, err := NewDialer().Dial("127.0.0.1", port)
	require.NoError(t, err)
	defer sock.Close()
	assert.True(t, sock.IsOpen())

	tick(t, func() bool {
		ok, err := sock.CheckConnected()
		require.NoError(t, err)
		return ok
	})

	// Nothing sent yet: must not block and must not close.
	n, err := sock.Recv(make([]byte, 8))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, sock.IsOpen())

	payload := []byte("ping")
	for len(payload) > 0 {
		n, err := sock.Send(payload)
		require.NoError(t, err)
		payload = payload[n:]
	}

	var got []byte
	buf := make([]byte, 64)
	var readErr error
	tick(t, func() bool {
		n, err := sock.Recv(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			readErr = err
			return true
		}
		return false
	})
	require.NoError(t, <-serverDone)

	assert.Equal(t, "echo:ping", string(got))
	assert.True(t, errors.Is(readErr, api.ErrRead), "peer close surfaces as read error, got %v", readErr)
	assert.False(t, sock.IsOpen())
	assert.EqualValues(t, 4, sock.TotalUpload())
	assert.EqualValues(t, 9, sock.TotalDownload())
}

func TestDialer_ResolvesLocalhost(t *testing.T) {
	ln, port := listenLoopback(t)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			conn.Close()
		}
	}()

	sock, err := NewDialer().Dial("localhost", port)
	if err != nil {
		// localhost may resolve to ::1 first while the listener is IPv4 only.
		require.ErrorIs(t, err, api.ErrConnect)
		return
	}
	defer sock.Close()
	addr := sock.RemoteAddr().(*net.TCPAddr)
	assert.True(t, addr.IP.IsLoopback())
	assert.Equal(t, port, addr.Port)
}

func TestDialer_RefusedConnection(t *testing.T) {
	ln, port := listenLoopback(t)
	ln.Close()

	sock, err := NewDialer().Dial("127.0.0.1", port)
	if err != nil {
		require.ErrorIs(t, err, api.ErrConnect)
		return
	}
	var connErr error
	tick(t, func() bool {
		ok, err := sock.CheckConnected()
		if err != nil {
			connErr = err
			return true
		}
		return ok
	})
	require.ErrorIs(t, connErr, api.ErrConnect)
	assert.Contains(t, connErr.Error(), "errno=")
	assert.Equal(t, api.StateFailed, sock.State())
	assert.False(t, sock.IsOpen())
}

func TestDialer_RejectsBadInput(t *testing.T) {
	d := NewDialer(WithResolveTimeout(2 * time.Second))

	_, err := d.Dial("127.0.0.1", 0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = d.Dial("", 80)
	assert.ErrorIs(t, err, api.ErrResolution)

	_, err = d.Dial("name.invalid", 80)
	assert.ErrorIs(t, err, api.ErrResolution)
}

func TestSysError_RendersErrno(t *testing.T) {
	err := sysError(api.ErrCodeSend, "send", unix.EPIPE)
	assert.ErrorIs(t, err, api.ErrSend)
	assert.Contains(t, err.Error(), "send failed [errno=")
	assert.Equal(t, "EPIPE", err.Context["errno"])
}
