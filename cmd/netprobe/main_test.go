package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCLI(out io.Writer) *CLI {
	return &CLI{
		Tick:    time.Millisecond,
		Timeout: 5 * time.Second,
		out:     out,
		logger:  zerolog.Nop(),
	}
}

func TestFetchCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		fmt.Fprint(w, "twelve bytes")
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := &FetchCmd{URL: []string{srv.URL + "/a", srv.URL + "/gone"}}
	err := cmd.Run(testCLI(&out))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 requests rejected")

	text := out.String()
	assert.Contains(t, text, srv.URL+"/a: 12 bytes")
	assert.Contains(t, text, srv.URL+"/gone: rejected: 410")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("/a:")), bytes.Index(out.Bytes(), []byte("/gone:")))
	assert.Contains(t, text, "total upload=")
}

func TestFetchCmd_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	cli := testCLI(io.Discard)
	cli.Timeout = 20 * time.Millisecond
	err := (&FetchCmd{URL: []string{srv.URL}}).Run(cli)
	assert.True(t, errors.Is(err, errTimeout))
}

func TestConnectCmd_Echo(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 64)
		n, _ := c.Read(buf)
		c.Write(bytes.ToUpper(buf[:n]))
	}()

	var out bytes.Buffer
	port := ln.Addr().(*net.TCPAddr).Port
	cmd := &ConnectCmd{Host: "127.0.0.1", Port: port, Send: "ping", ReadFor: 2 * time.Second}
	require.NoError(t, cmd.Run(testCLI(&out)))

	text := out.String()
	assert.Contains(t, text, "connection 1 -> 127.0.0.1:")
	assert.Contains(t, text, "PING")
	assert.Contains(t, text, "total upload=4 download=4")
}

func TestCLIValidate(t *testing.T) {
	cli := testCLI(io.Discard)
	require.NoError(t, cli.Validate())
	cli.Tick = 0
	assert.Error(t, cli.Validate())
}
