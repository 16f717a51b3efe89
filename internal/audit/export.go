package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/sigfuse/internal/model"
)

// WriteJSONL writes one JSON object per line.
func WriteJSONL(w io.Writer, entries []model.AuditEntry) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("write audit seq %d: %w", e.Seq, err)
		}
	}
	return nil
}

// ReadJSONL parses entries written by WriteJSONL. Blank lines are skipped;
// any malformed line is an error. The chain is not verified here.
func ReadJSONL(r io.Reader) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		var e model.AuditEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("read audit line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return out, nil
}
