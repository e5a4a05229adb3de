package transfer_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Agent", r.UserAgent())
		fmt.Fprint(w, "hello world")
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		// no Content-Length: forces the streaming limit path
		w.(http.Flusher).Flush()
		fmt.Fprint(w, strings.Repeat("x", 4096))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newBackend(t *testing.T, opts ...transfer.Option) *transfer.Backend {
	t.Helper()
	b, err := transfer.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

// await polls tr the way Requests.Update does, once per simulated tick.
func await(t *testing.T, tr api.Transfer) api.TransferResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if res, done := tr.Poll(); done {
			return res
		}
		if time.Now().After(deadline) {
			t.Fatal("transfer did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBackend_SuccessAccountsOverhead(t *testing.T) {
	srv := newServer(t)
	b := newBackend(t, transfer.WithUserAgent("probe/1"))

	tr, err := b.Submit(&api.Request{URL: srv.URL + "/ok", FollowLocation: true})
	require.NoError(t, err)
	res := await(t, tr)

	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "hello world", string(res.Body))
	assert.Greater(t, res.UploadSize, uint64(len("GET /ok HTTP/1.1\r\n")))
	assert.Greater(t, res.HeaderSize, uint64(len("HTTP/1.1 200 OK\r\n")))

	again, done := tr.Poll()
	assert.True(t, done, "finished transfers stay finished")
	assert.Equal(t, res.Status, again.Status)
}

func TestBackend_NonOKStatus(t *testing.T) {
	srv := newServer(t)
	b := newBackend(t)

	tr, err := b.Submit(&api.Request{URL: srv.URL + "/missing"})
	require.NoError(t, err)
	res := await(t, tr)
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Empty(t, res.Body)
}

func TestBackend_FollowLocation(t *testing.T) {
	srv := newServer(t)
	b := newBackend(t)

	tr, err := b.Submit(&api.Request{URL: srv.URL + "/moved", FollowLocation: false})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, await(t, tr).Status)

	tr, err = b.Submit(&api.Request{URL: srv.URL + "/moved", FollowLocation: true})
	require.NoError(t, err)
	res := await(t, tr)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "hello world", string(res.Body))
}

func TestBackend_SizeLimit(t *testing.T) {
	srv := newServer(t)
	b := newBackend(t)

	cases := []struct {
		name    string
		path    string
		max     int64
		tooBig  bool
		bodyLen int
	}{
		{"unlimited", "/big", 0, false, 4096},
		{"exact", "/big", 4096, false, 4096},
		{"streamed overflow", "/big", 4095, true, 0},
		{"content-length overflow", "/ok", 5, true, 0},
		{"content-length fits", "/ok", 11, false, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := b.Submit(&api.Request{URL: srv.URL + tc.path, MaxSize: tc.max})
			require.NoError(t, err)
			res := await(t, tr)
			if tc.tooBig {
				require.Error(t, res.Err)
				assert.True(t, errors.Is(res.Err, api.ErrResponseTooLarge))
				return
			}
			require.NoError(t, res.Err)
			assert.Len(t, res.Body, tc.bodyLen)
		})
	}
}

func TestBackend_SubmissionErrors(t *testing.T) {
	b := newBackend(t)

	for _, raw := range []string{"ftp://example.com/x", "http://", "::not a url", "/relative"} {
		_, err := b.Submit(&api.Request{URL: raw})
		assert.ErrorIs(t, err, api.ErrTransferSubmission, raw)
	}
	_, err := b.Submit(&api.Request{URL: "http://example.com", MaxSize: -1})
	assert.ErrorIs(t, err, api.ErrTransferSubmission)
}

func TestBackend_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	b := newBackend(t)

	tr, err := b.Submit(&api.Request{URL: addr + "/gone"})
	require.NoError(t, err)
	res := await(t, tr)
	require.Error(t, res.Err)
	assert.Zero(t, res.Status)
}

func TestBackend_CloseAbortsAndRejects(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	b, err := transfer.New(transfer.WithHTTP2(true))
	require.NoError(t, err)
	tr, err := b.Submit(&api.Request{URL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, b.Close())
	res := await(t, tr)
	assert.Error(t, res.Err, "in-flight transfer is cancelled by Close")

	_, err = b.Submit(&api.Request{URL: srv.URL})
	assert.ErrorIs(t, err, api.ErrTransferSubmission)
}
