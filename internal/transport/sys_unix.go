//go:build linux || darwin || freebsd || netbsd || openbsd

// File: internal/transport/sys_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// POSIX descriptor: non-blocking TCP over golang.org/x/sys/unix.

package transport

import (
	"errors"
	"net"

	"github.com/momentics/hioload-net/api"
	"golang.org/x/sys/unix"
)

type unixDescriptor struct {
	fd int
}

// openDescriptor creates a socket for ip's family, switches it to
// non-blocking mode and starts the handshake. established is true when the
// kernel completed the connect synchronously (common on loopback).
func openDescriptor(ip net.IP, zone string, port int, noDelay bool) (d descriptor, established bool, err error) {
	family, sa := sockaddr(ip, zone, port)

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, false, sysError(api.ErrCodeConnect, "socket", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, false, sysError(api.ErrCodeConnect, "set non-blocking", err)
	}
	if noDelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}

	switch err := unix.Connect(fd, sa); {
	case err == nil:
		established = true
	case errors.Is(err, unix.EINPROGRESS), errors.Is(err, unix.EINTR):
		// handshake continues in the kernel
	default:
		unix.Close(fd)
		return nil, false, sysError(api.ErrCodeConnect, "connect", err)
	}
	return &unixDescriptor{fd: fd}, established, nil
}

func sockaddr(ip net.IP, zone string, port int) (int, unix.Sockaddr) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	if zone != "" {
		if ifi, err := net.InterfaceByName(zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}

func (d *unixDescriptor) read(p []byte) (int, error) {
	n, err := unix.Read(d.fd, p)
	if err != nil {
		if wouldBlock(err) {
			return 0, errWouldBlock
		}
		return 0, sysError(api.ErrCodeRead, "recv", err)
	}
	return n, nil
}

func (d *unixDescriptor) write(p []byte) (int, error) {
	n, err := unix.Write(d.fd, p)
	if err != nil {
		if wouldBlock(err) {
			return 0, errWouldBlock
		}
		return 0, sysError(api.ErrCodeSend, "send", err)
	}
	return n, nil
}

func (d *unixDescriptor) connectResult() (bool, error) {
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, sysError(api.ErrCodeConnect, "poll", err)
	}
	if n == 0 {
		return false, nil
	}
	soErr, err := unix.GetsockoptInt(d.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, sysError(api.ErrCodeConnect, "getsockopt", err)
	}
	if soErr != 0 {
		return false, sysError(api.ErrCodeConnect, "connect", unix.Errno(soErr))
	}
	return true, nil
}

func (d *unixDescriptor) close() error {
	return unix.Close(d.fd)
}

func wouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}
