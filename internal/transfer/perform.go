// File: internal/transfer/perform.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking half of a transfer, executed on a tomb goroutine: issue the GET,
// enforce the body size limit and measure protocol overhead.

package transfer

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/pool"
)

func perform(client *http.Client, hreq *http.Request, maxSize int64) api.TransferResult {
	resp, err := client.Do(hreq)
	if err != nil {
		return api.TransferResult{Err: err}
	}
	defer resp.Body.Close()

	res := api.TransferResult{
		Status:     resp.StatusCode,
		UploadSize: requestSize(resp.Request),
		HeaderSize: headerSize(resp),
	}
	if resp.StatusCode != http.StatusOK {
		return res
	}
	res.Body, res.Err = readBody(resp, maxSize)
	return res
}

// readBody accumulates the body. maxSize <= 0 means unlimited; otherwise a
// body longer than maxSize aborts the transfer.
func readBody(resp *http.Response, maxSize int64) ([]byte, error) {
	var buf bytes.Buffer
	if maxSize > 0 && resp.ContentLength > maxSize {
		return nil, tooLarge(maxSize)
	}
	if resp.ContentLength > 0 && resp.ContentLength < math.MaxInt32 {
		buf.Grow(int(resp.ContentLength))
	}

	var r io.Reader = resp.Body
	if maxSize > 0 {
		// One extra byte detects overflow; MaxInt64 cannot be exceeded anyway.
		limit := maxSize
		if limit < math.MaxInt64 {
			limit++
		}
		r = io.LimitReader(resp.Body, limit)
	}
	scratch := pool.Shared().Get()
	defer pool.Shared().Put(scratch)
	for {
		n, err := r.Read(scratch)
		buf.Write(scratch[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if maxSize > 0 && int64(buf.Len()) > maxSize {
		return nil, tooLarge(maxSize)
	}
	return buf.Bytes(), nil
}

func tooLarge(maxSize int64) error {
	return api.NewError(api.ErrCodeResponseTooLarge, fmt.Sprintf("response exceeds %d bytes", maxSize)).
		WithOp("transfer")
}

type countingWriter struct{ n uint64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += uint64(len(p))
	return len(p), nil
}

// requestSize approximates the request bytes put on the wire: request line,
// Host and the explicit headers.
func requestSize(r *http.Request) uint64 {
	if r == nil {
		return 0
	}
	var w countingWriter
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	fmt.Fprintf(&w, "%s %s HTTP/1.1\r\nHost: %s\r\n", r.Method, r.URL.RequestURI(), host)
	r.Header.Write(&w)
	io.WriteString(&w, "\r\n")
	return w.n
}

// headerSize measures the status line and response headers.
func headerSize(resp *http.Response) uint64 {
	var w countingWriter
	fmt.Fprintf(&w, "%s %s\r\n", resp.Proto, resp.Status)
	resp.Header.Write(&w)
	io.WriteString(&w, "\r\n")
	return w.n
}
