package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigfuse/internal/audit"
	"github.com/roach88/sigfuse/internal/model"
	"github.com/roach88/sigfuse/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Database  string
	Operation string
	Since     int64
	Output    string
}

// AuditResult is the output of the audit command.
type AuditResult struct {
	Entries  []model.AuditEntry `json:"entries"`
	Total    int                `json:"total"`
	Verified bool               `json:"verified"`
	Problem  string             `json:"problem,omitempty"`
}

var validOperations = []model.Operation{model.OpAddSignal, model.OpFuse, model.OpEvict, model.OpRestore}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print and verify the audit trail",
		Long: `Print the stored audit trail and verify its hash chain.

The whole chain is always verified; --operation and --since only filter
what is printed. --output writes the selected entries as JSONL.

Exit codes:
  0 - Chain verified
  1 - Chain broken
  2 - Command error (database not found, etc.)

Examples:
  sigfuse audit --db ./sigfuse.db
  sigfuse audit --db ./sigfuse.db --operation fuse --since 40
  sigfuse audit --db ./sigfuse.db --output audit.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "only show entries of this operation (add_signal|fuse|evict|restore)")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only show entries with seq greater than this")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write selected entries to this JSONL file")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	op := model.Operation(opts.Operation)
	if op != "" && !slices.Contains(validOperations, op) {
		return f.fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("unknown operation %q", opts.Operation), nil)
	}

	ctx := commandContext(cmd)
	st, err := openExisting(opts.Database)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	chain, err := st.ReadAudit(ctx, 0, "")
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to read audit log", err)
	}
	selected, err := st.ReadAudit(ctx, opts.Since, op)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to read audit log", err)
	}

	result := AuditResult{Entries: selected, Total: len(chain), Verified: true}
	if err := audit.VerifyChain(chain); err != nil {
		result.Verified = false
		result.Problem = err.Error()
	}

	if opts.Output != "" {
		if err := writeAuditFile(opts.Output, selected); err != nil {
			return f.fail(ExitCommandError, ErrCodeGeneric, "failed to write audit file", err)
		}
		f.VerboseLog("Wrote %d entries to %s", len(selected), opts.Output)
	}

	if !result.Verified {
		if opts.Format == "json" {
			if err := f.Failure(result, ErrCodeAudit, result.Problem); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(f.Writer, formatAuditText(result))
		}
		return NewExitError(ExitFailure, "audit chain broken")
	}
	return f.Success(result, formatAuditText(result))
}

func writeAuditFile(path string, entries []model.AuditEntry) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audit.WriteJSONL(out, entries); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func formatAuditText(r AuditResult) string {
	var b strings.Builder
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%6d  %s  %-10s  %s", e.Seq, e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.Operation, shortHash(e.Hash))
		if len(e.Subjects) > 0 {
			fmt.Fprintf(&b, "  %s", strings.Join(e.Subjects, ","))
		}
		if len(e.Metrics) > 0 {
			fmt.Fprintf(&b, "  %s", formatMetrics(e.Metrics))
		}
		b.WriteString("\n")
	}
	if r.Verified {
		fmt.Fprintf(&b, "✓ chain verified (%d entries)", r.Total)
	} else {
		fmt.Fprintf(&b, "✗ chain broken: %s", r.Problem)
	}
	return b.String()
}

func formatMetrics(m map[string]float64) string {
	keys := model.SortedKeys(m)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, m[k])
	}
	return strings.Join(parts, " ")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// openExisting opens a database that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}
	return store.Open(path)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
