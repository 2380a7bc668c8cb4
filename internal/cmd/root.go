// Package cmd wires the CLI entrypoint: argument/stdin reading, the
// --debug flag, and handing the decoded request to internal/engine
// (spec.md §6 "Invocation").
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sirupsen/logrus"

	"github.com/cdp-skill/cdp-skill/internal/engine"
	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/schema"
)

// stdinTimeout bounds how long the command waits for piped JSON before
// concluding none is coming (spec.md §6 "Reading stdin times out after
// 100ms when no data is available, so interactive TTYs do not hang").
const stdinTimeout = 100 * time.Millisecond

// Options holds one invocation's resolved streams and flags, following the
// teacher's per-command Options-struct convention (CaptureOptions,
// ServeOptions).
type Options struct {
	Debug bool

	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// ExitCode is set by Run once the invocation completes; the caller
	// (main) reads it after Execute returns.
	ExitCode int
}

// NewOptions returns Options wired to the process's real streams.
func NewOptions() *Options {
	return &Options{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}
}

// NewRootCommand builds the single `cdp-skill` command: at most one
// positional JSON argument, a persistent --debug flag, no subcommands — the
// spec's invocation shape is a single verb (spec.md §6).
func NewRootCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cdp-skill [json-command]",
		Short:         "Drive a Chrome tab over the DevTools Protocol with a JSON step program",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), args)
		},
	}
	cmd.PersistentFlags().BoolVar(&o.Debug, "debug", false, "write a per-invocation debug log under ./log")
	return cmd
}

// Run reads the request body, invokes the engine, and writes the single-line
// JSON response (spec.md §6 invariant: stdout carries exactly the response
// object). It never returns an error for request-level failures — those are
// reported as JSON on stdout with ExitCode 1, matching "silent exit-1 is
// treated as a bug" (spec.md §7).
func (o *Options) Run(ctx context.Context, args []string) error {
	input, err := o.readInput(ctx, args)
	if err != nil {
		o.writeFatal(err)
		return nil
	}

	logger := logrus.New()
	logger.SetOutput(o.ErrOut)
	logger.SetLevel(logrus.WarnLevel)

	result := engine.Invoke(ctx, input, engine.Options{
		Debug: o.Debug,
		Log:   logger,
	})
	fmt.Fprintln(o.Out, string(result.Body))
	o.ExitCode = result.ExitCode
	return nil
}

// readInput prefers the positional argument; absent that, it reads stdin,
// bailing out after stdinTimeout if nothing has arrived yet.
func (o *Options) readInput(ctx context.Context, args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}

	type readResult struct {
		data []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		data, err := io.ReadAll(o.In)
		ch <- readResult{data, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, errtaxonomy.ParseErrorf("read stdin: %v", r.err)
		}
		return r.data, nil
	case <-time.After(stdinTimeout):
		return nil, errtaxonomy.ParseErrorf("no JSON command given as an argument or on stdin")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeFatal emits the {status:"error",...} envelope for failures that
// happen before the engine ever sees a request body (e.g. no input
// arrived), and sets the process exit code to 1.
func (o *Options) writeFatal(err error) {
	resp := errtaxonomy.ToResponse(err)
	body, _ := json.Marshal(&schema.Response{Status: "error", Errors: &resp})
	fmt.Fprintln(o.Out, string(body))
	o.ExitCode = 1
}
