//go:build windows

// File: internal/transport/sys_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WinSock descriptor: non-blocking TCP over golang.org/x/sys/windows.

package transport

import (
	"errors"
	"net"
	"sync"
	"unsafe"

	"github.com/momentics/hioload-net/api"
	"golang.org/x/sys/windows"
)

const (
	wsaeWouldBlock = windows.Errno(10035)
	wsaeInProgress = windows.Errno(10036)

	fionbio    = 0x8004667e
	soError    = 0x1007
	pollWrNorm = 0x0010
	pollErr    = 0x0001
	pollHup    = 0x0002
)

var (
	ws2           = windows.NewLazySystemDLL("ws2_32.dll")
	procIoctl     = ws2.NewProc("ioctlsocket")
	procWSAPoll   = ws2.NewProc("WSAPoll")
	wsaStartOnce  sync.Once
	wsaStartError error
)

// wsaPollFd mirrors WSAPOLLFD.
type wsaPollFd struct {
	fd      windows.Handle
	events  int16
	revents int16
}

type windowsDescriptor struct {
	h windows.Handle
}

func wsaStartup() error {
	wsaStartOnce.Do(func() {
		var data windows.WSAData
		wsaStartError = windows.WSAStartup(uint32(0x202), &data)
	})
	return wsaStartError
}

func openDescriptor(ip net.IP, zone string, port int, noDelay bool) (d descriptor, established bool, err error) {
	if err := wsaStartup(); err != nil {
		return nil, false, sysError(api.ErrCodeConnect, "WSAStartup", err)
	}
	family, sa := sockaddr(ip, zone, port)

	h, err := windows.Socket(family, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, false, sysError(api.ErrCodeConnect, "socket", err)
	}
	mode := uint32(1)
	if r, _, e := procIoctl.Call(uintptr(h), uintptr(fionbio), uintptr(unsafe.Pointer(&mode))); r != 0 {
		windows.Closesocket(h)
		return nil, false, sysError(api.ErrCodeConnect, "ioctlsocket", e)
	}
	if noDelay {
		_ = windows.SetsockoptInt(h, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	}

	switch err := windows.Connect(h, sa); {
	case err == nil:
		established = true
	case errors.Is(err, wsaeWouldBlock), errors.Is(err, wsaeInProgress):
	default:
		windows.Closesocket(h)
		return nil, false, sysError(api.ErrCodeConnect, "connect", err)
	}
	return &windowsDescriptor{h: h}, established, nil
}

func sockaddr(ip net.IP, zone string, port int) (int, windows.Sockaddr) {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &windows.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return windows.AF_INET, sa
	}
	sa := &windows.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	if zone != "" {
		if ifi, err := net.InterfaceByName(zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return windows.AF_INET6, sa
}

func (d *windowsDescriptor) read(p []byte) (int, error) {
	var got, flags uint32
	buf := windows.WSABuf{Len: uint32(len(p)), Buf: &p[0]}
	if err := windows.WSARecv(d.h, &buf, 1, &got, &flags, nil, nil); err != nil {
		if errors.Is(err, wsaeWouldBlock) {
			return 0, errWouldBlock
		}
		return 0, sysError(api.ErrCodeRead, "recv", err)
	}
	return int(got), nil
}

func (d *windowsDescriptor) write(p []byte) (int, error) {
	var sent uint32
	buf := windows.WSABuf{Len: uint32(len(p)), Buf: &p[0]}
	if err := windows.WSASend(d.h, &buf, 1, &sent, 0, nil, nil); err != nil {
		if errors.Is(err, wsaeWouldBlock) {
			return 0, errWouldBlock
		}
		return 0, sysError(api.ErrCodeSend, "send", err)
	}
	return int(sent), nil
}

func (d *windowsDescriptor) connectResult() (bool, error) {
	fds := []wsaPollFd{{fd: d.h, events: pollWrNorm}}
	r, _, e := procWSAPoll.Call(uintptr(unsafe.Pointer(&fds[0])), 1, 0)
	if int32(r) < 0 {
		return false, sysError(api.ErrCodeConnect, "WSAPoll", e)
	}
	if r == 0 {
		return false, nil
	}
	if fds[0].revents&(pollErr|pollHup) == 0 {
		return true, nil
	}
	var soErr int32
	size := int32(unsafe.Sizeof(soErr))
	if err := windows.Getsockopt(d.h, windows.SOL_SOCKET, soError, (*byte)(unsafe.Pointer(&soErr)), &size); err != nil {
		return false, sysError(api.ErrCodeConnect, "getsockopt", err)
	}
	return false, sysError(api.ErrCodeConnect, "connect", windows.Errno(soErr))
}

func (d *windowsDescriptor) close() error {
	return windows.Closesocket(d.h)
}
