package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sigfuse/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Output   string
}

// ExportSummary is printed when the snapshot goes to a file.
type ExportSummary struct {
	Path        string `json:"path"`
	Signals     int    `json:"signals"`
	Rounds      int    `json:"rounds"`
	Audit       int    `json:"audit"`
	Clock       int64  `json:"clock"`
	Fingerprint string `json:"fingerprint"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored engine snapshot as JSON",
		Long: `Export the stored engine snapshot as JSON.

The snapshot holds the config, every retained signal with its encoded
vector, the fusion and entropy history, the audit trail and the logical
clock. It is written to stdout, or to --output.

Examples:
  sigfuse export --db ./sigfuse.db > snapshot.json
  sigfuse export --db ./sigfuse.db -o snapshot.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the snapshot to this file")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	snap, err := st.LoadSnapshot(commandContext(cmd))
	if err != nil {
		code := ErrCodeStore
		if errors.Is(err, store.ErrNoSnapshot) || errors.Is(err, store.ErrCorruptSnapshot) {
			code = ErrCodeSnapshot
		}
		return f.fail(ExitCommandError, code, "failed to load snapshot", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to encode snapshot", err)
	}
	data = append(data, '\n')

	if opts.Output == "" {
		_, err := f.Writer.Write(data)
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to write snapshot", err)
	}
	fingerprint, err := snap.Fingerprint()
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to fingerprint snapshot", err)
	}
	summary := ExportSummary{
		Path:        opts.Output,
		Signals:     len(snap.Signals),
		Rounds:      len(snap.History),
		Audit:       len(snap.Audit),
		Clock:       snap.Clock,
		Fingerprint: fingerprint,
	}
	return f.Success(summary, fmt.Sprintf("Exported %d signal(s), %d round(s), %d audit entries to %s",
		summary.Signals, summary.Rounds, summary.Audit, summary.Path))
}
