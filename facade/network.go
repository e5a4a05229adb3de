// File: facade/network.go
// Unified facade layer for hioload-net.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Network aggregates the HTTP request queue and the raw socket registry
// behind one object driven from the application tick. Get and Update cover
// asynchronous HTTP; Connect, GetConnection and Disconnect manage sockets
// addressed by integer ids that are never reused.

package facade

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/internal/requests"
	"github.com/momentics/hioload-net/internal/transfer"
	"github.com/momentics/hioload-net/internal/transport"
	"github.com/rs/zerolog"
)

// Network is owned by the goroutine that drives Update; it is not safe for
// concurrent use.
type Network struct {
	config    *Config
	requests  *requests.Requests
	dialer    api.Dialer
	telemetry *control.Telemetry
	logger    zerolog.Logger

	conns  map[uint64]api.Socket
	nextID uint64
	closed bool
}

// Option customizes New.
type Option func(*options)

type options struct {
	backend   api.TransferBackend
	client    *http.Client
	hasClient bool
	dialer    api.Dialer
	telemetry *control.Telemetry
	logger    *zerolog.Logger
}

// WithBackend replaces the net/http transfer backend.
func WithBackend(b api.TransferBackend) Option {
	return func(o *options) { o.backend = b }
}

// WithHTTPClient runs the default backend on c instead of a client built
// from Config. A nil client is a backend init failure.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client, o.hasClient = c, true }
}

// WithDialer replaces the non-blocking socket dialer.
func WithDialer(d api.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithTelemetry sets the telemetry sink used by Update and Connect.
func WithTelemetry(t *control.Telemetry) Option {
	return func(o *options) { o.telemetry = t }
}

// WithLogger sets the root logger. Components log through sub-loggers.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// New builds a Network from cfg (DefaultConfig when nil). A transfer backend
// that cannot be created makes New fail with api.ErrBackendInit.
func New(cfg *Config, opts ...Option) (*Network, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := zerolog.Nop()
	if o.logger != nil {
		level, _ := cfg.Level()
		logger = o.logger.Level(level)
	}

	backend := o.backend
	if backend == nil {
		topts := []transfer.Option{
			transfer.WithUserAgent(cfg.UserAgent),
			transfer.WithHTTP2(cfg.EnableHTTP2),
			transfer.WithLogger(component(logger, "transfer")),
		}
		if o.hasClient {
			topts = append(topts, transfer.WithHTTPClient(o.client))
		}
		b, err := transfer.New(topts...)
		if err != nil {
			logger.Error().Err(err).Msg("transfer backend init failed")
			if !errors.Is(err, api.ErrBackendInit) {
				err = fmt.Errorf("%w: %w", api.ErrBackendInit, err)
			}
			return nil, err
		}
		backend = b
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = transport.NewDialer(
			transport.WithResolveTimeout(cfg.ResolveTimeout),
			transport.WithNoDelay(cfg.NoDelay),
			transport.WithLogger(component(logger, "transport")),
		)
	}

	tel := o.telemetry
	if tel == nil {
		tel = control.NewTelemetry(nil, nil)
		if cfg.EnableMetrics {
			t, _, err := control.NewInmemTelemetry(cfg.MetricsService, nil)
			if err != nil {
				logger.Warn().Err(err).Msg("metrics disabled")
			} else {
				tel = t
			}
		}
	}

	n := &Network{
		config: cfg,
		requests: requests.New(backend,
			requests.WithFollowLocation(cfg.FollowLocation),
			requests.WithLogger(component(logger, "requests")),
		),
		dialer:    dialer,
		telemetry: tel,
		logger:    component(logger, "network"),
		conns:     make(map[uint64]api.Socket),
	}
	return n, nil
}

func component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Get queues an HTTP GET. Exactly one of onResponse or onReject is invoked,
// from inside a later Update (or from Get itself if the request is refused
// before any network activity). maxSize 0 means unlimited.
func (n *Network) Get(url string, onResponse api.OnResponse, onReject api.OnReject, maxSize int64) {
	n.requests.Get(url, onResponse, onReject, maxSize)
}

// Connect opens a non-blocking TCP connection and registers it under a new
// id. Ids start at 1 and are never reused. On failure no entry is created.
func (n *Network) Connect(address string, port int) (uint64, error) {
	peer := transport.JoinHostPort(address, port)
	if n.closed {
		return 0, api.NewError(api.ErrCodeConnect, "network closed").
			WithOp("connect").
			WithContext("peer", peer)
	}
	sock, err := n.dialer.Dial(address, port)
	if err != nil {
		n.logger.Error().Err(err).Str("peer", peer).Msg("connect failed")
		n.telemetry.ConnectionFailed(peer, api.CodeOf(err).String())
		return 0, err
	}
	n.nextID++
	id := n.nextID
	n.conns[id] = sock
	n.telemetry.ConnectionEstablished(id, peer)
	n.logger.Debug().Uint64("connection_id", id).Str("peer", peer).Msg("connection registered")
	return id, nil
}

// GetConnection returns the socket registered under id.
func (n *Network) GetConnection(id uint64) (api.Socket, bool) {
	sock, ok := n.conns[id]
	return sock, ok
}

// Disconnect closes and unregisters id. It reports whether id was known.
func (n *Network) Disconnect(id uint64) bool {
	sock, ok := n.conns[id]
	if !ok {
		return false
	}
	delete(n.conns, id)
	if err := sock.Close(); err != nil {
		n.logger.Warn().Err(err).Uint64("connection_id", id).Msg("close failed")
	}
	n.telemetry.ConnectionClosed(id)
	return true
}

// Connections returns the registered ids in ascending order.
func (n *Network) Connections() []uint64 {
	ids := make([]uint64, 0, len(n.conns))
	for id := range n.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Update advances the HTTP queue by one poll and publishes traffic totals.
func (n *Network) Update() {
	n.requests.Update()
	n.telemetry.Publish(n.traffic())
}

func (n *Network) traffic() control.Traffic {
	tr := control.Traffic{
		HTTPUpload:      n.requests.TotalUpload(),
		HTTPDownload:    n.requests.TotalDownload(),
		PendingRequests: n.requests.Pending(),
		Connections:     len(n.conns),
	}
	for _, sock := range n.conns {
		tr.SocketUpload += sock.TotalUpload()
		tr.SocketDownload += sock.TotalDownload()
	}
	return tr
}

// TotalUpload is the HTTP upload total plus the upload of every registered
// socket. Disconnected sockets no longer contribute.
func (n *Network) TotalUpload() uint64 {
	tr := n.traffic()
	return tr.HTTPUpload + tr.SocketUpload
}

// TotalDownload mirrors TotalUpload for received bytes.
func (n *Network) TotalDownload() uint64 {
	tr := n.traffic()
	return tr.HTTPDownload + tr.SocketDownload
}

// Config returns the configuration the Network was built with.
func (n *Network) Config() *Config {
	return n.config
}

// Stats returns the latest published telemetry snapshot.
func (n *Network) Stats() map[string]any {
	return n.telemetry.Registry().GetSnapshot()
}

// Close closes every socket and the transfer backend. Further Connect calls
// fail and further Get calls are rejected.
func (n *Network) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	for _, id := range n.Connections() {
		n.Disconnect(id)
	}
	if err := n.requests.Close(); err != nil {
		return fmt.Errorf("close transfer backend: %w", err)
	}
	return nil
}
