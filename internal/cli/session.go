package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/formdeps/internal/engine"
	"github.com/roach88/formdeps/internal/ir"
	"github.com/roach88/formdeps/internal/registry"
	"github.com/roach88/formdeps/internal/store"
)

// session is an engine over an in-memory registry, optionally recording
// into the evaluation log.
type session struct {
	reg    *registry.Memory
	engine *engine.Engine
	store  *store.Store
	logger *slog.Logger
}

// newSession builds the engine for form. Every pass goes to recorders in
// order. When dbPath is set the log is opened and recorded last, and the
// pass clock resumes after its last pass so history stays ordered across
// invocations.
func newSession(ctx context.Context, opts *RootOptions, form *ir.Form, dbPath string, recorders []engine.Recorder, extra ...engine.Option) (*session, error) {
	cfg := opts.config()
	s := &session{
		reg:    registry.NewMemory(form.Fields),
		logger: opts.logger(),
	}

	engOpts := []engine.Option{
		engine.WithLogger(s.logger),
		engine.WithMaxEventHops(cfg.MaxEventHops),
		engine.WithQueueCapacity(cfg.QueueCapacity),
	}

	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeStore, Message: "failed to open database", Err: err}
		}
		seq, err := st.MaxSeq(ctx)
		if err != nil {
			_ = st.Close()
			return nil, &LoadError{Code: ErrCodeStore, Message: "failed to read database", Err: err}
		}
		s.store = st
		recorders = append(recorders, st)
		engOpts = append(engOpts, engine.WithClock(engine.NewClockAt(seq)))
		s.logger.Debug("evaluation log open", "path", dbPath, "seq", seq)
	}
	if len(recorders) > 0 {
		engOpts = append(engOpts, engine.WithRecorder(teeRecorder(recorders)))
	}

	s.engine = engine.New(s.reg, form.Dependencies, append(engOpts, extra...)...)
	return s, nil
}

func (s *session) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// teeRecorder hands each pass to every recorder in order and stops at the
// first error.
type teeRecorder []engine.Recorder

func (t teeRecorder) WritePass(ctx context.Context, res ir.Result) error {
	for _, r := range t {
		if err := r.WritePass(ctx, res); err != nil {
			return err
		}
	}
	return nil
}
