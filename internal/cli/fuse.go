package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sigfuse/internal/config"
	"github.com/roach88/sigfuse/internal/engine"
	"github.com/roach88/sigfuse/internal/model"
	"github.com/roach88/sigfuse/internal/store"
)

// FuseOptions holds flags for the fuse command.
type FuseOptions struct {
	*RootOptions
	Config         string
	Database       string
	RoundSize      int
	EvictOlderThan time.Duration
	Capacity       int

	// IDGenerator and TimeSource override the engine defaults (for testing).
	IDGenerator engine.IDGenerator
	TimeSource  engine.TimeSource
}

// Rejection is a signal record the engine refused.
type Rejection struct {
	Record int    `json:"record"`
	Error  string `json:"error"`
}

// SignalSummary is the retained state of one signal after a run.
type SignalSummary struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
}

// FuseReport is the output of the fuse command.
type FuseReport struct {
	Accepted int                  `json:"accepted"`
	Rejected []Rejection          `json:"rejected,omitempty"`
	Evicted  []string             `json:"evicted,omitempty"`
	Rounds   []model.FusionResult `json:"rounds"`
	Signals  []SignalSummary      `json:"signals"`
	Restored bool                 `json:"restored"`
	Saved    bool                 `json:"saved"`
}

// NewFuseCommand creates the fuse command.
func NewFuseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FuseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fuse <signals.(jsonl|yaml)>",
		Short: "Ingest signals and run fusion rounds",
		Long: `Ingest signals from a file and run fusion rounds over them.

Signals are applied in file order. With --round-size N a round runs after
every N signals and once more for any remainder; otherwise one round runs
after all signals. Eviction, when requested, runs before each round.

With --db the engine is restored from the stored snapshot (if any) and the
resulting state and audit trail are saved back.

Exit codes:
  0 - All signals accepted
  1 - One or more signals rejected
  2 - Command error (bad config, unreadable file, database error)

Examples:
  sigfuse fuse signals.jsonl
  sigfuse fuse --config sigfuse.cue --round-size 10 signals.yaml
  sigfuse fuse --db ./sigfuse.db --evict-older-than 24h signals.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFuse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (.cue, .yaml, .json)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().IntVar(&opts.RoundSize, "round-size", 0, "run a fusion round every N signals (0 = once at the end)")
	cmd.Flags().DurationVar(&opts.EvictOlderThan, "evict-older-than", 0, "evict signals older than this before each round (0 = never)")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "keep at most this many signals before each round (0 = unlimited)")

	return cmd
}

func runFuse(opts *FuseOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.RoundSize < 0 || opts.EvictOlderThan < 0 || opts.Capacity < 0 {
		return f.fail(ExitCommandError, ErrCodeInput, "--round-size, --evict-older-than and --capacity must be non-negative", nil)
	}

	inputs, err := LoadSignals(path)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeInput, "failed to load signals", err)
	}
	f.VerboseLog("Loaded %d signal(s) from %s", len(inputs), path)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	eng, restored, err := buildEngine(ctx, opts, st, logger)
	if err != nil {
		return f.fail(ExitCommandError, engineErrorCode(err), "failed to initialize engine", err)
	}

	report := FuseReport{Restored: restored}
	addIndex := 0
	ingest := engine.NewIngestor(eng, func(out engine.Outcome) {
		switch out.Request.Kind {
		case engine.RequestAdd:
			addIndex++
			if out.Err != nil {
				report.Rejected = append(report.Rejected, Rejection{Record: addIndex, Error: out.Err.Error()})
				return
			}
			report.Accepted++
		case engine.RequestFuse:
			report.Rounds = append(report.Rounds, *out.Result)
		case engine.RequestEvictOlderThan, engine.RequestEvictToCapacity:
			report.Evicted = append(report.Evicted, out.Evicted...)
		}
	})

	for _, r := range planRequests(inputs, opts) {
		if err := ingest.Submit(r); err != nil {
			return f.fail(ExitCommandError, ErrCodeGeneric, "failed to queue request", err)
		}
	}
	ingest.Close()

	if err := ingest.Run(ctx); err != nil {
		return f.fail(ExitFailure, ErrCodeGeneric, "fusion interrupted", err)
	}

	for _, s := range eng.Signals() {
		report.Signals = append(report.Signals, SignalSummary{
			ID:         s.ID,
			Source:     s.Source.String(),
			Category:   s.Category,
			Confidence: s.Confidence,
		})
	}

	if st != nil {
		if err := st.SaveSnapshot(ctx, eng.ExportState()); err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to save snapshot", err)
		}
		report.Saved = true
		logger.Info("snapshot saved", "db", opts.Database, "signals", eng.Len())
	}

	if len(report.Rejected) > 0 {
		msg := fmt.Sprintf("%d signal(s) rejected", len(report.Rejected))
		if opts.Format == "json" {
			if err := f.Failure(report, ErrCodeInput, msg); err != nil {
				return err
			}
		} else {
			fmt.Fprint(f.Writer, formatFuseText(report))
		}
		return NewExitError(ExitFailure, msg)
	}

	return f.Success(report, strings.TrimRight(formatFuseText(report), "\n"))
}

// buildEngine restores the engine stored in st, or creates a fresh one
// from the configured file.
func buildEngine(ctx context.Context, opts *FuseOptions, st *store.Store, logger *slog.Logger) (*engine.Engine, bool, error) {
	engOpts := []engine.EngineOption{engine.WithLogger(logger)}
	if opts.IDGenerator != nil {
		engOpts = append(engOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	if opts.TimeSource != nil {
		engOpts = append(engOpts, engine.WithTimeSource(opts.TimeSource))
	}

	if st != nil {
		snap, err := st.LoadSnapshot(ctx)
		switch {
		case err == nil:
			if opts.Config != "" {
				logger.Warn("ignoring --config: engine restored with stored config", "config", opts.Config)
			}
			eng, err := engine.Restore(snap, engOpts...)
			if err != nil {
				return nil, false, fmt.Errorf("restore engine: %w", err)
			}
			return eng, true, nil
		case !errors.Is(err, store.ErrNoSnapshot):
			return nil, false, err
		}
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return nil, false, err
	}
	eng, err := engine.New(cfg, engOpts...)
	if err != nil {
		return nil, false, err
	}
	return eng, false, nil
}

// loadConfig loads path, or the schema defaults when path is empty.
func loadConfig(path string) (engine.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// engineErrorCode maps engine construction failures to response codes.
func engineErrorCode(err error) string {
	switch {
	case config.IsLoadError(err), engine.IsConfigError(err), errors.Is(err, os.ErrNotExist):
		return ErrCodeConfig
	case errors.Is(err, engine.ErrInvalidSnapshot), errors.Is(err, store.ErrCorruptSnapshot):
		return ErrCodeSnapshot
	default:
		return ErrCodeStore
	}
}

// planRequests turns the input file into the queued operation sequence.
func planRequests(inputs []engine.SignalInput, opts *FuseOptions) []engine.Request {
	var reqs []engine.Request
	round := func() {
		if opts.EvictOlderThan > 0 {
			reqs = append(reqs, engine.Request{Kind: engine.RequestEvictOlderThan, MaxAge: opts.EvictOlderThan})
		}
		if opts.Capacity > 0 {
			reqs = append(reqs, engine.Request{Kind: engine.RequestEvictToCapacity, Capacity: opts.Capacity})
		}
		reqs = append(reqs, engine.Request{Kind: engine.RequestFuse})
	}

	pending := 0
	for _, in := range inputs {
		reqs = append(reqs, engine.Request{Kind: engine.RequestAdd, Signal: in})
		pending++
		if opts.RoundSize > 0 && pending == opts.RoundSize {
			round()
			pending = 0
		}
	}
	if pending > 0 || len(inputs) == 0 {
		round()
	}
	return reqs
}

func formatFuseText(r FuseReport) string {
	var b strings.Builder
	if r.Restored {
		fmt.Fprintln(&b, "Restored engine from database")
	}
	fmt.Fprintf(&b, "Accepted %d signal(s)", r.Accepted)
	if len(r.Rejected) > 0 {
		fmt.Fprintf(&b, ", rejected %d", len(r.Rejected))
	}
	fmt.Fprintln(&b)
	for _, rej := range r.Rejected {
		fmt.Fprintf(&b, "  ✗ record %d: %s\n", rej.Record, rej.Error)
	}
	if len(r.Evicted) > 0 {
		fmt.Fprintf(&b, "Evicted %d signal(s)\n", len(r.Evicted))
	}
	for _, round := range r.Rounds {
		fmt.Fprintf(&b, "%s\n", round)
	}
	if len(r.Signals) > 0 {
		fmt.Fprintln(&b, "Signals:")
		for _, s := range r.Signals {
			fmt.Fprintf(&b, "  %s  %-9s  %.4f\n", s.ID, s.Source, s.Confidence)
		}
	}
	if r.Saved {
		fmt.Fprintln(&b, "Snapshot saved")
	}
	return b.String()
}
