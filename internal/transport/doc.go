// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking raw TCP sockets for hioload-net. Platform code is strictly
// separated by build tags (POSIX via golang.org/x/sys/unix, Windows via
// golang.org/x/sys/windows) behind a small descriptor contract, so the socket
// state machine and traffic counters are shared and testable.

package transport
