package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/sigfuse/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// ErrUnsupportedFormat is returned for file extensions other than .cue,
// .yaml, .yml and .json.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// LoadError reports an invalid configuration file.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsLoadError reports whether err is (or wraps) a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Load reads and validates the configuration file at path.
func Load(path string) (engine.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes validates configuration source. The format is chosen by the
// extension of filename, which is also used in error positions.
func LoadBytes(filename string, data []byte) (engine.Config, error) {
	ctx := cuecontext.New()
	schema, err := schemaValue(ctx)
	if err != nil {
		return engine.Config{}, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return decode(schema)
	}

	var v cue.Value
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue", ".json":
		v = ctx.CompileBytes(data, cue.Filename(filename))
	case ".yaml", ".yml":
		file, err := cueyaml.Extract(filename, data)
		if err != nil {
			return engine.Config{}, formatCUEError(err)
		}
		v = ctx.BuildFile(file)
	default:
		return engine.Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err := v.Err(); err != nil {
		return engine.Config{}, formatCUEError(err)
	}

	return decode(schema.Unify(v))
}

// Default returns the configuration produced by an empty file.
func Default() (engine.Config, error) {
	ctx := cuecontext.New()
	schema, err := schemaValue(ctx)
	if err != nil {
		return engine.Config{}, err
	}
	return decode(schema)
}

func schemaValue(ctx *cue.Context) (cue.Value, error) {
	root := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile schema: %w", err)
	}
	return root.LookupPath(cue.ParsePath("#Config")), nil
}

func decode(v cue.Value) (engine.Config, error) {
	if err := v.Validate(); err != nil {
		return engine.Config{}, formatCUEError(err)
	}
	var cfg engine.Config
	if err := v.Decode(&cfg); err != nil {
		return engine.Config{}, formatCUEError(err)
	}
	// The engine re-checks what CUE cannot express (finiteness).
	if err := cfg.Validate(); err != nil {
		var ce *engine.ConfigError
		if errors.As(err, &ce) {
			return engine.Config{}, &LoadError{Field: ce.Field, Message: ce.Message}
		}
		return engine.Config{}, err
	}
	return cfg, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "cue"
	if path := first.Path(); len(path) > 0 {
		field = path[len(path)-1]
	}
	format, args := first.Msg()
	le := &LoadError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
	// Prefer a position in the user's file over one in the schema.
	for _, pos := range cueerrors.Positions(first) {
		if !le.Pos.IsValid() || le.Pos.Filename() == "schema.cue" {
			le.Pos = pos
		}
	}
	return le
}
