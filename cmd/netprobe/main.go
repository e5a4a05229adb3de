// File: cmd/netprobe/main.go
// Package main
// netprobe drives a hioload-net Network from a fixed tick loop: it fetches
// URLs through the single-slot HTTP queue or opens a raw non-blocking TCP
// connection, then prints traffic totals.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"
	"github.com/momentics/hioload-net/facade"
	"github.com/rs/zerolog"
)

// CLI holds global flags shared by every command.
type CLI struct {
	Config   string        `type:"existingfile" short:"c" help:"YAML configuration file"`
	LogLevel string        `help:"Override the configured log level"`
	Tick     time.Duration `default:"10ms" help:"Interval between Network.Update calls"`
	Timeout  time.Duration `default:"30s" help:"Give up after this long"`

	Fetch   FetchCmd   `cmd:"" help:"GET one or more URLs in FIFO order"`
	Connect ConnectCmd `cmd:"" help:"Open a raw TCP connection, send a payload and print the reply"`

	out    io.Writer
	logger zerolog.Logger
}

func main() {
	cli := &CLI{out: os.Stdout}
	cliCtx := kong.Parse(cli,
		kong.Name("netprobe"),
		kong.Description("Exercise the hioload-net HTTP queue and socket registry."),
		kong.UsageOnError(),
	)
	cli.logger = newLogger(os.Stderr)
	cliCtx.FatalIfErrorf(cliCtx.Run(cli))
}

func newLogger(w *os.File) zerolog.Logger {
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Validate is called by kong after parsing.
func (cli *CLI) Validate() error {
	if cli.Tick <= 0 {
		return fmt.Errorf("--tick must be positive, got %s", cli.Tick)
	}
	return nil
}

// network builds a Network from the configured file and flag overrides.
func (cli *CLI) network() (*facade.Network, error) {
	cfg := facade.DefaultConfig()
	if cli.Config != "" {
		loaded, err := facade.LoadConfig(cli.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	return facade.New(cfg, facade.WithLogger(cli.logger))
}

// loop calls tick every cli.Tick until it reports done or the timeout
// expires. It returns false on timeout.
func (cli *CLI) loop(tick func() bool) bool {
	deadline := time.Now().Add(cli.Timeout)
	ticker := time.NewTicker(cli.Tick)
	defer ticker.Stop()
	for {
		if tick() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		<-ticker.C
	}
}
