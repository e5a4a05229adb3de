//go:build linux || darwin || freebsd || netbsd || openbsd

// File: internal/transport/syserr_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Renders POSIX errno values into api errors.

package transport

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-net/api"
	"golang.org/x/sys/unix"
)

// sysError builds the api error for a failed OS call, e.g.
// "recv failed [errno=104]: connection reset by peer".
func sysError(code api.ErrorCode, op string, err error) *api.Error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return api.NewError(code, fmt.Sprintf("%s failed: %v", op, err)).WithCause(err)
	}
	return api.NewError(code, fmt.Sprintf("%s failed [errno=%d]: %s", op, int(errno), errno.Error())).
		WithCause(err).
		WithContext("errno", unix.ErrnoName(errno))
}
