package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/formdeps/internal/engine"
	"github.com/roach88/formdeps/internal/httpapi"
	"github.com/roach88/formdeps/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	MetricsAddr string

	// PassIDs overrides the pass id generator (for testing).
	PassIDs engine.PassIDGenerator

	// Listening receives the bound HTTP address once the server is up (for
	// testing with --metrics-addr 127.0.0.1:0).
	Listening chan<- string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <form>",
		Short: "Start the engine for a form",
		Long: `Start the engine over the form's initial state and evaluate triggers
read from stdin, one JSON object per line:

  {"fieldId": "country", "kind": "change", "set": {"country": "US"}}

Every pass, including those raised by events, is written to stdout as one
canonical JSON line. The engine stops at end of input or on SIGINT/SIGTERM;
delayed events still pending at that point are dropped.

With --metrics-addr an HTTP server exposes /metrics, /healthz, /snapshot,
/fields/{id} and POST /triggers (same body as a stdin line).

Example:
  formdeps run form.yaml --db ./formdeps.db
  formdeps run form.yaml --metrics-addr :9090 < triggers.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record passes in this SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve metrics and the HTTP API on this address (default from config)")

	return cmd
}

// passWriter writes each pass as a canonical JSON line.
type passWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *passWriter) WritePass(_ context.Context, res ir.Result) error {
	line, err := ir.CanonicalJSON(res)
	if err != nil {
		return fmt.Errorf("encode pass: %w", err)
	}
	p.mu.Lock()
	_, err = fmt.Fprintf(p.w, "%s\n", line)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write pass: %w", err)
	}
	return nil
}

func runEngine(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.config()
	logger := opts.logger()

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	metricsAddr := opts.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}

	doc, _, err := loadForm(path, true)
	if err != nil {
		return commandError(formatter, err)
	}
	logger.Info("form loaded", "path", path, "fields", len(doc.Form.Fields), "dependencies", len(doc.Form.Dependencies))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	extra := []engine.Option{engine.WithMetrics(engine.NewMetrics(promReg))}
	if opts.PassIDs != nil {
		extra = append(extra, engine.WithPassIDGenerator(opts.PassIDs))
	}

	out := &passWriter{w: cmd.OutOrStdout()}
	sess, err := newSession(ctx, opts.RootOptions, doc.Form, dbPath, []engine.Recorder{out}, extra...)
	if err != nil {
		return commandError(formatter, err)
	}
	defer sess.Close()

	submit := httpapi.NewSubmitter(sess.engine, sess.reg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if metricsAddr != "" {
		srv, addr, err := serveHTTP(metricsAddr, httpapi.NewHandler(submit, sess.reg, promReg, logger,
			httpapi.WithAllowedOrigins(cfg.CORSOrigins)))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start HTTP server", err)
		}
		logger.Info("http server listening", "addr", addr)
		if opts.Listening != nil {
			opts.Listening <- addr
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown", "error", err)
			}
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- sess.engine.Run(ctx) }()

	logger.Info("engine started", "db", dbPath)
	readErr := readTriggers(ctx, cmd.InOrStdin(), submit, logger)

	sess.engine.Stop()
	err = <-runErr
	logger.Info("engine stopped")

	if readErr != nil {
		return WrapExitError(ExitCommandError, "failed to read triggers", readErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	return nil
}

// readTriggers submits one trigger per input line until EOF or ctx is
// done. Bad lines are logged and skipped.
func readTriggers(ctx context.Context, r io.Reader, submit *httpapi.Submitter, logger *slog.Logger) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			n++
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var req httpapi.TriggerRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				logger.Warn("skipping malformed trigger", "line", n, "error", err)
				continue
			}
			if _, err := submit.Submit(ctx, req); err != nil {
				var reqErr *httpapi.RequestError
				if errors.As(err, &reqErr) {
					logger.Warn("skipping rejected trigger", "line", n, "error", err)
					continue
				}
				logger.Error("pass failed", "line", n, "field", req.FieldID, "error", err)
			}
		}
	}
}

func serveHTTP(addr string, h http.Handler) (*http.Server, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return srv, ln.Addr().String(), nil
}
