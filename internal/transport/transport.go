// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent factory for non-blocking TCP sockets. Resolves the
// target through the system resolver (IPv4 and IPv6), then hands the first
// address to the platform descriptor selected by build tags.

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
)

// DefaultResolveTimeout bounds a single name lookup.
const DefaultResolveTimeout = 5 * time.Second

// Dialer implements api.Dialer for the host platform.
type Dialer struct {
	resolver       *net.Resolver
	resolveTimeout time.Duration
	noDelay        bool
	logger         zerolog.Logger
}

var _ api.Dialer = (*Dialer)(nil)

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithResolver replaces the system resolver.
func WithResolver(r *net.Resolver) DialerOption {
	return func(d *Dialer) { d.resolver = r }
}

// WithResolveTimeout bounds name resolution; zero disables the bound.
func WithResolveTimeout(t time.Duration) DialerOption {
	return func(d *Dialer) { d.resolveTimeout = t }
}

// WithNoDelay toggles TCP_NODELAY on new sockets.
func WithNoDelay(on bool) DialerOption {
	return func(d *Dialer) { d.noDelay = on }
}

// WithLogger sets the logger used for connection events.
func WithLogger(l zerolog.Logger) DialerOption {
	return func(d *Dialer) { d.logger = l }
}

// NewDialer creates a Dialer backed by the system resolver.
func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		resolver:       net.DefaultResolver,
		resolveTimeout: DefaultResolveTimeout,
		noDelay:        true,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial resolves address and starts a non-blocking connect to port.
// The returned socket may still be connecting; see api.Socket.CheckConnected.
func (d *Dialer) Dial(address string, port int) (api.Socket, error) {
	if port <= 0 || port > 65535 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("port %d out of range", port)).
			WithOp("dial").
			WithCause(api.ErrInvalidArgument)
	}
	ip, zone, err := d.resolve(address)
	if err != nil {
		return nil, err
	}

	fd, established, err := openDescriptor(ip, zone, port, d.noDelay)
	if err != nil {
		return nil, err
	}
	remote := &net.TCPAddr{IP: ip, Zone: zone, Port: port}
	d.logger.Info().
		Str("address", address).
		Str("remote", remote.String()).
		Bool("established", established).
		Msgf("connected to %s [%s]", address, remote)
	return newSocket(fd, remote, established), nil
}

// resolve returns the first address the system resolver reports.
func (d *Dialer) resolve(address string) (net.IP, string, error) {
	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	if host == "" {
		return nil, "", resolutionError(address, "empty address")
	}
	if ip, zone := parseLiteral(host); ip != nil {
		return ip, zone, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return nil, "", resolutionError(address, err.Error())
	}

	ctx := context.Background()
	if d.resolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.resolveTimeout)
		defer cancel()
	}
	addrs, err := d.resolver.LookupIPAddr(ctx, ascii)
	if err != nil {
		return nil, "", resolutionError(address, err.Error())
	}
	if len(addrs) == 0 {
		return nil, "", resolutionError(address, "no addresses found")
	}
	return addrs[0].IP, addrs[0].Zone, nil
}

func parseLiteral(host string) (net.IP, string) {
	zone := ""
	if i := strings.LastIndexByte(host, '%'); i > 0 {
		host, zone = host[:i], host[i+1:]
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, ""
	}
	return ip, zone
}

func resolutionError(address, msg string) error {
	return api.NewError(api.ErrCodeResolution, msg).
		WithOp("resolve").
		WithContext("address", address)
}

// JoinHostPort renders address:port for logs and CLI output.
func JoinHostPort(address string, port int) string {
	return net.JoinHostPort(address, strconv.Itoa(port))
}
