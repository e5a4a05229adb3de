//go:build windows

// File: internal/transport/syserr_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Renders WinSock error codes into api errors using FormatMessage.

package transport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/momentics/hioload-net/api"
	"golang.org/x/sys/windows"
)

// sysError builds the api error for a failed WinSock call, e.g.
// "connect failed [wsa=10061]: No connection could be made ...".
func sysError(code api.ErrorCode, op string, err error) *api.Error {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return api.NewError(code, fmt.Sprintf("%s failed: %v", op, err)).WithCause(err)
	}
	return api.NewError(code, fmt.Sprintf("%s failed [wsa=%d]: %s", op, uint32(errno), formatMessage(errno))).
		WithCause(err)
}

func formatMessage(errno windows.Errno) string {
	buf := make([]uint16, 512)
	flags := uint32(windows.FORMAT_MESSAGE_FROM_SYSTEM | windows.FORMAT_MESSAGE_IGNORE_INSERTS)
	n, err := windows.FormatMessage(flags, 0, uint32(errno), 0, buf, nil)
	if err != nil || n == 0 {
		return fmt.Sprintf("winsock error %d", uint32(errno))
	}
	return strings.TrimRight(windows.UTF16ToString(buf[:n]), "\r\n. ")
}
