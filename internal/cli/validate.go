package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sigfuse/internal/config"
	"github.com/roach88/sigfuse/internal/engine"
)

// ValidationError is one problem found in a config file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Config *engine.Config    `json:"config,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a config file",
		Long: `Validate a .cue, .yaml or .json config file against the config schema.

Unset fields take their defaults; the resolved config is printed on success.

Exit codes:
  0 - Config is valid
  1 - Config is invalid
  2 - Command error (missing file, unsupported format)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		var le *config.LoadError
		if !errors.As(err, &le) {
			code := ErrCodeGeneric
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, config.ErrUnsupportedFormat) {
				code = ErrCodeConfig
			}
			return f.fail(ExitCommandError, code, "failed to read config", err)
		}
		return outputValidationError(f, le)
	}

	f.VerboseLog("Validated %s", path)
	return f.Success(ValidationResult{Valid: true, Config: &cfg}, formatConfigText(path, cfg))
}

func outputValidationError(f *OutputFormatter, le *config.LoadError) error {
	ve := ValidationError{Field: le.Field, Message: le.Message}
	if le.Pos.IsValid() {
		ve.Line = le.Pos.Line()
		ve.Column = le.Pos.Column()
	}

	if f.Format == "json" {
		if err := f.Failure(ValidationResult{Valid: false, Errors: []ValidationError{ve}}, ErrCodeConfig, le.Error()); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %s\n", le.Error())
	}
	return WrapExitError(ExitFailure, "invalid config", le)
}

func formatConfigText(path string, cfg engine.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s is valid\n", path)
	fmt.Fprintf(&b, "  feature_dimension:           %d\n", cfg.FeatureDimension)
	fmt.Fprintf(&b, "  strategy:                    %s\n", cfg.Strategy)
	fmt.Fprintf(&b, "  boost_factor:                %g\n", cfg.BoostFactor)
	fmt.Fprintf(&b, "  suppression_factor:          %g\n", cfg.SuppressionFactor)
	fmt.Fprintf(&b, "  noise_threshold:             %g\n", cfg.NoiseThreshold)
	fmt.Fprintf(&b, "  entropy_stability_threshold: %g\n", cfg.EntropyStabilityThreshold)
	fmt.Fprintf(&b, "  eigenvalue_floor:            %g\n", cfg.EigenvalueFloor)
	fmt.Fprintf(&b, "  phase_period:                %g\n", cfg.PhasePeriod)
	fmt.Fprintf(&b, "  pairwise_threshold:          %g\n", cfg.PairwiseThreshold)
	fmt.Fprintf(&b, "  pairwise_boost:              %g", cfg.PairwiseBoost)
	return b.String()
}
