// Package engine wires the transport, page, dom, snapshot, runner, tabs,
// siteprofile, metrics, and debuglog packages together into the single
// entrypoint a CLI invocation drives (spec.md §2 "Data flow per
// invocation").
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cdp-skill/cdp-skill/internal/cdp"
	"github.com/cdp-skill/cdp-skill/internal/debuglog"
	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/metrics"
	"github.com/cdp-skill/cdp-skill/internal/runner"
	"github.com/cdp-skill/cdp-skill/internal/schema"
	"github.com/cdp-skill/cdp-skill/internal/siteprofile"
	"github.com/cdp-skill/cdp-skill/internal/tabs"
)

// Options configures one Invoke call; it is populated from flags/env by
// internal/cmd, following the teacher's Options-struct convention
// (capture.Options, ServeOptions) rather than a config file (spec.md §6
// "Any top-level config key is a validation error").
type Options struct {
	Debug    bool
	DebugDir string
	Endpoint cdp.Endpoint
	TabsPath string
	SitesDir string
	Log      *logrus.Logger
}

// Result is what Invoke hands back to the CLI layer: the marshalled
// response body and the process exit code.
type Result struct {
	Body     []byte
	ExitCode int
}

// Invoke runs one full invocation: parse, resolve/bootstrap the session,
// execute the step program, assemble the response, and persist the
// cross-invocation side files (spec.md §2 steps 1-7).
func Invoke(ctx context.Context, input []byte, opts Options) Result {
	start := time.Now()
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	entry := log.WithField("component", "engine")

	req, parseErr := decodeRequest(input)
	if parseErr != nil {
		return finish(input, nil, "", nil, parseErr, opts, start)
	}

	if len(req.Config) > 0 {
		err := errtaxonomy.ValidationErrorf("top-level \"config\" is no longer accepted; pass per-action parameters inside each step instead")
		return finish(input, nil, "", nil, err, opts, start)
	}
	if err := runner.ValidateRequest(req.Steps); err != nil {
		return finish(input, nil, "", nil, err, opts, start)
	}

	reg, err := tabs.Load(tabsPath(opts))
	if err != nil {
		return finish(input, nil, "", nil, err, opts, start)
	}

	sites, err := siteprofile.New(sitesDir(opts))
	if err != nil {
		return finish(input, nil, "", nil, err, opts, start)
	}

	inv, prefix, remaining, fatal := runner.Bootstrap(ctx, req, reg, endpoint(opts), entry)
	if fatal != nil {
		return finish(input, nil, "", nil, fatal, opts, start)
	}
	inv.Sites = sites

	defer func() {
		if inv.Session != nil {
			inv.Session.Detach(ctx)
		}
		if inv.Transport != nil {
			inv.Transport.Close()
		}
	}()

	resp := runner.RunSteps(ctx, inv, remaining, prefix)

	if err := reg.Save(); err != nil {
		entry.WithError(err).Warn("tab registry save failed")
	}

	return finish(input, resp, inv.Alias, actionLabels(req), nil, opts, start)
}

// decodeRequest parses the request body, returning a PARSE-class error on
// malformed JSON (spec.md §8 "For any request that fails JSON parsing,
// output is a single-line JSON {status:error, error:{type:PARSE,...}}").
func decodeRequest(input []byte) (*schema.Request, error) {
	var req schema.Request
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, errtaxonomy.ParseErrorf("invalid JSON request: %v", err)
	}
	return &req, nil
}

// finish assembles the final Result: on a fatal error, a bare error
// response; otherwise resp as produced by the runner. It always records
// metrics and, when enabled, a debug log entry (spec.md §6 "Environment
// variables", "Debug logs").
func finish(input []byte, resp *schema.Response, alias string, actions []string, fatal error, opts Options, start time.Time) Result {
	if fatal != nil {
		errResp := errtaxonomy.ToResponse(fatal)
		resp = &schema.Response{Status: "error", Tab: alias, Errors: &errResp}
	}

	body, err := json.Marshal(resp)
	if err != nil {
		// Marshalling our own response struct should never fail; if it
		// somehow does, fall back to a minimal hand-built error so the
		// invariant "user-visible failures always emit JSON" still holds.
		body = []byte(`{"status":"error","errors":{"type":"EXECUTION","message":"failed to marshal response"}}`)
	}

	exitCode := 0
	if resp.Status != "ok" {
		exitCode = 1
	}

	_ = metrics.Append(metrics.Record{
		Ts:          time.Now().Unix(),
		InputBytes:  len(input),
		OutputBytes: len(body),
		Steps:       len(resp.Steps),
		TimeMs:      time.Since(start).Milliseconds(),
		Tab:         alias,
	})

	if opts.Debug {
		dir := opts.DebugDir
		if dir == "" {
			dir = "log"
		}
		var reqAny any
		_ = json.Unmarshal(input, &reqAny)
		var respAny any
		_ = json.Unmarshal(body, &respAny)
		if _, err := debuglog.Write(dir, alias, resp.Status, actions, debuglog.Entry{Request: reqAny, Response: respAny}); err != nil {
			logrus.WithError(err).Warn("debug log write failed")
		}
	}

	return Result{Body: body, ExitCode: exitCode}
}

// actionLabels lists each step's action key, for the debug log filename
// (spec.md §6 "actions up to 3 names with a +K suffix if more").
func actionLabels(req *schema.Request) []string {
	labels := make([]string, 0, len(req.Steps))
	for i := range req.Steps {
		keys := req.Steps[i].ActionKeys()
		if len(keys) == 1 {
			labels = append(labels, keys[0])
		}
	}
	return labels
}

func endpoint(opts Options) cdp.Endpoint {
	if opts.Endpoint.Host != "" && opts.Endpoint.Port != 0 {
		return opts.Endpoint
	}
	return cdp.Endpoint{Host: "localhost", Port: 9222}
}

func tabsPath(opts Options) string {
	if opts.TabsPath != "" {
		return opts.TabsPath
	}
	return tabs.DefaultPath()
}

func sitesDir(opts Options) string {
	if opts.SitesDir != "" {
		return opts.SitesDir
	}
	dir, err := siteprofile.DefaultBaseDir()
	if err != nil {
		return "."
	}
	return dir
}
