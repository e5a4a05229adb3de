package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-net/facade"
	"github.com/momentics/hioload-net/pool"
)

var errTimeout = errors.New("timed out")

// FetchCmd queues every URL at once and waits for all callbacks.
type FetchCmd struct {
	MaxSize int64    `default:"0" help:"Reject bodies larger than this many bytes (0 = unlimited)"`
	URL     []string `arg:"" required:"" help:"URLs to fetch"`
}

func (cmd *FetchCmd) Run(cli *CLI) error {
	n, err := cli.network()
	if err != nil {
		return err
	}
	defer n.Close()

	remaining := len(cmd.URL)
	failed := 0
	for _, u := range cmd.URL {
		u := u
		n.Get(u,
			func(body []byte) {
				remaining--
				fmt.Fprintf(cli.out, "%s: %d bytes\n", u, len(body))
			},
			func(reason string) {
				remaining--
				failed++
				fmt.Fprintf(cli.out, "%s: rejected: %s\n", u, reason)
			},
			cmd.MaxSize,
		)
	}

	ok := cli.loop(func() bool {
		n.Update()
		return remaining == 0
	})
	printTotals(cli, n)
	if !ok {
		return fmt.Errorf("fetch: %d requests unfinished: %w", remaining, errTimeout)
	}
	if failed > 0 {
		return fmt.Errorf("fetch: %d of %d requests rejected", failed, len(cmd.URL))
	}
	return nil
}

// ConnectCmd opens one connection, writes Send and prints what comes back
// until the peer closes or ReadFor passes.
type ConnectCmd struct {
	Send    string        `help:"Payload written once the connection is established"`
	ReadFor time.Duration `default:"1s" help:"How long to keep reading after sending"`

	Host string `arg:"" help:"Host name or IP address"`
	Port int    `arg:"" help:"TCP port"`
}

func (cmd *ConnectCmd) Run(cli *CLI) error {
	n, err := cli.network()
	if err != nil {
		return err
	}
	defer n.Close()

	id, err := n.Connect(cmd.Host, cmd.Port)
	if err != nil {
		return err
	}
	sock, _ := n.GetConnection(id)
	fmt.Fprintf(cli.out, "connection %d -> %s\n", id, sock.RemoteAddr())

	var connErr error
	if !cli.loop(func() bool {
		var up bool
		up, connErr = sock.CheckConnected()
		return up || connErr != nil
	}) {
		return fmt.Errorf("connect %s: %w", sock.RemoteAddr(), errTimeout)
	}
	if connErr != nil {
		return connErr
	}

	payload := []byte(cmd.Send)
	var sendErr error
	cli.loop(func() bool {
		if len(payload) == 0 {
			return true
		}
		var sent int
		sent, sendErr = sock.Send(payload)
		payload = payload[sent:]
		return sendErr != nil
	})
	if sendErr != nil {
		return sendErr
	}

	buf := pool.Shared().Get()
	defer pool.Shared().Put(buf)
	reader := *cli
	reader.Timeout = cmd.ReadFor
	reader.loop(func() bool {
		got, err := sock.Recv(buf)
		if got > 0 {
			cli.out.Write(buf[:got])
		}
		if err != nil {
			cli.logger.Debug().Err(err).Uint64("connection_id", id).Msg("receive finished")
			return true
		}
		return false
	})
	fmt.Fprintln(cli.out)
	printTotals(cli, n)
	return nil
}

func printTotals(cli *CLI, n *facade.Network) {
	fmt.Fprintf(cli.out, "total upload=%d download=%d\n", n.TotalUpload(), n.TotalDownload())
}
