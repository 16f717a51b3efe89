package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/sigfuse/internal/model"
)

// timeLayout is the TEXT format of stored timestamps (always UTC).
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// marshalJSON encodes v as compact JSON TEXT without HTML escaping.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// marshalMetadata stores metadata as canonical JSON; nil is stored as {}.
func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := model.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

// unmarshalMetadata returns nil for an empty object, matching the engine's
// representation of "no metadata".
func unmarshalMetadata(data string) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func marshalSubjects(subjects []string) (string, error) {
	if subjects == nil {
		subjects = []string{}
	}
	data, err := model.MarshalCanonical(subjects)
	if err != nil {
		return "", fmt.Errorf("marshal subjects: %w", err)
	}
	return string(data), nil
}

func marshalMetrics(metrics map[string]float64) (string, error) {
	if metrics == nil {
		metrics = map[string]float64{}
	}
	data, err := model.MarshalCanonical(metrics)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}
	return string(data), nil
}
