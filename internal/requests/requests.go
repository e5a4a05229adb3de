// File: internal/requests/requests.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Requests is a single-slot FIFO HTTP client. Exactly one transfer is active
// at a time; later requests wait in insertion order. Update is the only
// engine of progress and must be called at least once per application tick.

package requests

import (
	"strconv"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/momentics/hioload-net/api"
	"github.com/rs/zerolog"
)

// Requests is owned by one goroutine; it is not safe for concurrent use.
type Requests struct {
	backend        api.TransferBackend
	pending        *queue.Queue
	active         *inflight
	followLocation bool
	logger         zerolog.Logger

	totalUpload   uint64
	totalDownload uint64
}

// inflight binds a request to its transfer for the lifetime of the slot.
type inflight struct {
	req      *api.Request
	transfer api.Transfer
}

// Option configures Requests.
type Option func(*Requests)

// WithFollowLocation sets the redirect policy applied by Get.
func WithFollowLocation(on bool) Option {
	return func(r *Requests) { r.followLocation = on }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Requests) { r.logger = l }
}

// New wraps backend. Requests takes ownership and closes it in Close.
func New(backend api.TransferBackend, opts ...Option) *Requests {
	r := &Requests{
		backend:        backend,
		pending:        queue.New(),
		followLocation: true,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get enqueues a GET of url. maxSize 0 means unlimited.
func (r *Requests) Get(url string, onResponse api.OnResponse, onReject api.OnReject, maxSize int64) {
	r.Submit(&api.Request{
		URL:            url,
		OnResponse:     onResponse,
		OnReject:       onReject,
		MaxSize:        maxSize,
		FollowLocation: r.followLocation,
	})
}

// Submit enqueues req, starting it immediately when the slot is free.
func (r *Requests) Submit(req *api.Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	// Always queue first: a callback submitting from inside Update must not
	// overtake requests that are already waiting.
	r.pending.Add(req)
	r.drain()
}

// Update polls the active transfer once and, if it finished, dispatches its
// callback and starts the next queued request.
func (r *Requests) Update() {
	if r.active == nil {
		r.drain()
		return
	}
	res, done := r.active.transfer.Poll()
	if !done {
		return
	}
	req := r.active.req
	r.active = nil
	r.complete(req, res)
	r.drain()
}

// start submits req; a refused submission is rejected at once and leaves
// the slot free.
func (r *Requests) start(req *api.Request) {
	tr, err := r.backend.Submit(req)
	if err != nil {
		r.logger.Error().Err(err).Str("request_id", req.ID).Str("url", req.URL).Msg("transfer not started")
		reject(req, err.Error())
		return
	}
	r.active = &inflight{req: req, transfer: tr}
}

// drain fills the free slot from the queue.
func (r *Requests) drain() {
	for r.active == nil && r.pending.Length() > 0 {
		r.start(r.pending.Remove().(*api.Request))
	}
}

func (r *Requests) complete(req *api.Request, res api.TransferResult) {
	log := r.logger.With().Str("request_id", req.ID).Str("url", req.URL).Logger()
	switch {
	case res.Err != nil:
		log.Error().Err(res.Err).Int("status", res.Status).Msg("transfer failed")
		reject(req, res.Err.Error())
	case res.Status != 200:
		log.Error().Int("status", res.Status).Msg("transfer rejected")
		reject(req, strconv.Itoa(res.Status))
	default:
		r.totalUpload += res.UploadSize
		r.totalDownload += res.HeaderSize + uint64(len(res.Body))
		log.Debug().
			Uint64("upload", res.UploadSize).
			Uint64("download", res.HeaderSize+uint64(len(res.Body))).
			Msg("transfer complete")
		if req.OnResponse != nil {
			req.OnResponse(res.Body)
		}
	}
}

func reject(req *api.Request, reason string) {
	if req.OnReject != nil {
		req.OnReject(reason)
	}
}

// Pending returns the number of queued requests, excluding the active one.
func (r *Requests) Pending() int { return r.pending.Length() }

// Active reports whether a transfer is in flight.
func (r *Requests) Active() bool { return r.active != nil }

func (r *Requests) TotalUpload() uint64 { return r.totalUpload }

func (r *Requests) TotalDownload() uint64 { return r.totalDownload }

// Close releases the backend. Queued requests are not withdrawn; once the
// backend refuses submissions they are rejected by the next Update.
func (r *Requests) Close() error {
	return r.backend.Close()
}
