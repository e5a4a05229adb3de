// File: api/transfer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP transfer contracts: the request record, the completion callbacks and
// the pluggable backend that performs transfers.

package api

// OnResponse receives the full response body of a successful transfer.
type OnResponse func(body []byte)

// OnReject receives a human-readable diagnostic for a failed transfer.
type OnReject func(reason string)

// Request is one queued HTTP GET.
type Request struct {
	ID             string
	URL            string
	OnResponse     OnResponse
	OnReject       OnReject
	MaxSize        int64 // 0 = unlimited
	FollowLocation bool
}

// TransferResult is the outcome of a finished transfer.
type TransferResult struct {
	Status int    // HTTP status code, 0 on transport failure
	Body   []byte // accumulated response body
	Err    error  // transport-level failure, nil if a status was received

	// UploadSize is the request protocol overhead sent on the wire.
	UploadSize uint64
	// HeaderSize is the response protocol overhead (status line + headers).
	HeaderSize uint64
}

// Transfer is an in-flight request owned by the active slot.
type Transfer interface {
	// Poll performs one non-blocking progress check. done is false while
	// the transfer is still running.
	Poll() (res TransferResult, done bool)
}

// TransferBackend starts transfers.
type TransferBackend interface {
	// Submit starts req. An error means nothing was sent on the network.
	Submit(req *Request) (Transfer, error)

	// Close aborts in-flight transfers and releases backend resources.
	Close() error
}
