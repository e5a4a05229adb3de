// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake transfer backend: transfers stay in flight until the test completes
// them, which makes slot and queue behavior observable tick by tick.

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-net/api"
)

// TransferBackend is a fake implementation of api.TransferBackend.
type TransferBackend struct {
	mu          sync.Mutex
	transfers   []*Transfer
	submitError error
	closed      bool
}

var _ api.TransferBackend = (*TransferBackend)(nil)

// NewTransferBackend creates a fake backend accepting every request.
func NewTransferBackend() *TransferBackend {
	return &TransferBackend{}
}

// Submit implements api.TransferBackend.Submit.
func (b *TransferBackend) Submit(req *api.Request) (api.Transfer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("%w: backend closed", api.ErrTransferSubmission)
	}
	if b.submitError != nil {
		return nil, b.submitError
	}
	t := &Transfer{Request: req}
	b.transfers = append(b.transfers, t)
	return t, nil
}

// Close implements api.TransferBackend.Close.
func (b *TransferBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// SetSubmitError makes Submit refuse requests with err (nil to reset).
func (b *TransferBackend) SetSubmitError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitError = err
}

// Transfers returns every transfer started so far, in start order.
func (b *TransferBackend) Transfers() []*Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Transfer, len(b.transfers))
	copy(out, b.transfers)
	return out
}

// Last returns the most recently started transfer, or nil.
func (b *TransferBackend) Last() *Transfer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.transfers) == 0 {
		return nil
	}
	return b.transfers[len(b.transfers)-1]
}

// Closed reports whether Close was called.
func (b *TransferBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Transfer is a fake in-flight transfer completed by the test.
type Transfer struct {
	Request *api.Request

	mu    sync.Mutex
	res   api.TransferResult
	done  bool
	polls int
}

var _ api.Transfer = (*Transfer)(nil)

// Poll implements api.Transfer.Poll.
func (t *Transfer) Poll() (api.TransferResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls++
	return t.res, t.done
}

// Complete finishes the transfer with res.
func (t *Transfer) Complete(res api.TransferResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.res, t.done = res, true
}

// Respond finishes the transfer with HTTP 200 and body; header bytes are
// reported as protocol overhead.
func (t *Transfer) Respond(body []byte, upload, header uint64) {
	t.Complete(api.TransferResult{Status: 200, Body: body, UploadSize: upload, HeaderSize: header})
}

// Fail finishes the transfer with a transport error.
func (t *Transfer) Fail(err error) {
	t.Complete(api.TransferResult{Err: err})
}

// Polls reports how many times Poll was called.
func (t *Transfer) Polls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.polls
}
