// File: internal/transfer/backend.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// net/http implementation of api.TransferBackend. Each submitted request runs
// on a goroutine tracked by the backend tomb; the result is handed over
// through a one-slot channel that Transfer.Poll drains without blocking, so
// completion callbacks always run on the polling goroutine.

package transfer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"gopkg.in/tomb.v2"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "hioload-net/1.0"

// Backend implements api.TransferBackend on top of net/http.
type Backend struct {
	client     *http.Client
	noRedirect *http.Client
	userAgent  string
	http2      bool
	logger     zerolog.Logger

	tmb tomb.Tomb
	ctx context.Context
}

var _ api.TransferBackend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend) error

// WithHTTPClient replaces the default client. The client's Transport is
// shared with the no-redirect variant.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) error {
		if c == nil {
			return fmt.Errorf("transfer: nil http client")
		}
		b.client = c
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(b *Backend) error {
		if ua != "" {
			b.userAgent = ua
		}
		return nil
	}
}

// WithHTTP2 enables HTTP/2 negotiation on the default transport.
func WithHTTP2(on bool) Option {
	return func(b *Backend) error {
		b.http2 = on
		return nil
	}
}

// WithLogger sets the backend logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) error {
		b.logger = l
		return nil
	}
}

// New creates a Backend. An error means the backend is unusable.
func New(opts ...Option) (*Backend, error) {
	b := &Backend{
		userAgent: DefaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrBackendInit, err)
		}
	}
	if b.client == nil {
		tr, err := newTransport(b.http2)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrBackendInit, err)
		}
		b.client = &http.Client{Transport: tr}
	}
	nr := *b.client
	nr.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	b.noRedirect = &nr

	// Keep the tomb alive between transfers; Close kills it.
	b.tmb.Go(func() error {
		<-b.tmb.Dying()
		return nil
	})
	b.ctx = b.tmb.Context(context.Background())
	return b, nil
}

func newTransport(enableHTTP2 bool) (*http.Transport, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if enableHTTP2 {
		if err := http2.ConfigureTransport(tr); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}
	return tr, nil
}

// Submit validates req and starts it. Validation failures are reported
// before any network activity.
func (b *Backend) Submit(req *api.Request) (api.Transfer, error) {
	if !b.tmb.Alive() {
		return nil, submissionError(req, "backend closed")
	}
	if req.MaxSize < 0 {
		return nil, submissionError(req, fmt.Sprintf("negative size limit %d", req.MaxSize))
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, submissionError(req, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, submissionError(req, fmt.Sprintf("unsupported protocol %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, submissionError(req, "missing host")
	}
	hreq, err := http.NewRequestWithContext(b.ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, submissionError(req, err.Error())
	}
	hreq.Header.Set("User-Agent", b.userAgent)

	client := b.client
	if !req.FollowLocation {
		client = b.noRedirect
	}
	t := &transfer{done: make(chan api.TransferResult, 1)}
	maxSize := req.MaxSize
	b.tmb.Go(func() error {
		t.done <- perform(client, hreq, maxSize)
		return nil
	})
	b.logger.Debug().Str("request_id", req.ID).Str("url", req.URL).Msg("transfer started")
	return t, nil
}

// Close cancels in-flight transfers and waits for their goroutines.
func (b *Backend) Close() error {
	b.tmb.Kill(nil)
	err := b.tmb.Wait()
	b.client.CloseIdleConnections()
	return err
}

func submissionError(req *api.Request, msg string) error {
	return api.NewError(api.ErrCodeTransferSubmission, msg).
		WithOp("submit").
		WithContext("url", req.URL)
}

// transfer is the per-request context owned by the active slot.
type transfer struct {
	done     chan api.TransferResult
	res      api.TransferResult
	finished bool
}

// Poll implements api.Transfer.
func (t *transfer) Poll() (api.TransferResult, bool) {
	if t.finished {
		return t.res, true
	}
	select {
	case res := <-t.done:
		t.res, t.finished = res, true
		return res, true
	default:
		return api.TransferResult{}, false
	}
}
