package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sigfuse/internal/engine"
)

// SignalFileError reports a malformed record in a signals file.
type SignalFileError struct {
	Path   string
	Record int // 1-based line (JSONL) or list index (YAML)
	Err    error
}

func (e *SignalFileError) Error() string {
	return fmt.Sprintf("%s: record %d: %v", e.Path, e.Record, e.Err)
}

func (e *SignalFileError) Unwrap() error {
	return e.Err
}

// LoadSignals reads signal records from a .jsonl, .json, .yaml or .yml
// file. JSONL holds one object per line; YAML and JSON hold a list.
// Unknown fields are rejected.
func LoadSignals(path string) ([]engine.SignalInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signals file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson":
		return readSignalsJSONL(path, f)
	case ".yaml", ".yml", ".json":
		// JSON is a subset of YAML.
		return readSignalsYAML(path, f)
	default:
		return nil, fmt.Errorf("unsupported signals format %q", ext)
	}
}

func readSignalsJSONL(path string, r io.Reader) ([]engine.SignalInput, error) {
	var out []engine.SignalInput
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 || data[0] == '#' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		var in engine.SignalInput
		if err := dec.Decode(&in); err != nil {
			return nil, &SignalFileError{Path: path, Record: line, Err: err}
		}
		out = append(out, in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signals file: %w", err)
	}
	return out, nil
}

func readSignalsYAML(path string, r io.Reader) ([]engine.SignalInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var nodes []yaml.Node
	if err := dec.Decode(&nodes); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
	}

	out := make([]engine.SignalInput, 0, len(nodes))
	for i := range nodes {
		var in engine.SignalInput
		if err := decodeStrict(&nodes[i], &in); err != nil {
			return nil, &SignalFileError{Path: path, Record: i + 1, Err: err}
		}
		out = append(out, in)
	}
	return out, nil
}

// decodeStrict decodes one node with unknown fields rejected. Node.Decode
// does not honour KnownFields, so the node is re-encoded first.
func decodeStrict(node *yaml.Node, v any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}
