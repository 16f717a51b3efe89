package model

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"
)

// SourceClass is the trust class of the producer that reported a signal.
type SourceClass int

const (
	SourceUnknown SourceClass = iota
	SourceAnonymous
	SourceCommunity
	SourceVerified
	SourceOfficial
	SourceSensor
)

var sourceNames = map[SourceClass]string{
	SourceUnknown:   "UNKNOWN",
	SourceAnonymous: "ANONYMOUS",
	SourceCommunity: "COMMUNITY",
	SourceVerified:  "VERIFIED",
	SourceOfficial:  "OFFICIAL",
	SourceSensor:    "SENSOR",
}

// String returns the wire name of the source class.
func (s SourceClass) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SourceClass(%d)", int(s))
}

// Valid reports whether s is one of the declared source classes.
func (s SourceClass) Valid() bool {
	_, ok := sourceNames[s]
	return ok
}

// ParseSourceClass converts a wire name (case-insensitive) to a SourceClass.
// The empty string maps to SourceUnknown.
func ParseSourceClass(name string) (SourceClass, error) {
	if name == "" {
		return SourceUnknown, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	for class, n := range sourceNames {
		if n == upper {
			return class, nil
		}
	}
	return SourceUnknown, fmt.Errorf("unknown source class %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s SourceClass) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid source class %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SourceClass) UnmarshalText(text []byte) error {
	class, err := ParseSourceClass(string(text))
	if err != nil {
		return err
	}
	*s = class
	return nil
}

// Location is a 2D position. Interpretation of the axes belongs to the host.
type Location struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Finite reports whether both coordinates are finite numbers.
func (l Location) Finite() bool {
	return isFinite(l.X) && isFinite(l.Y)
}

// Signal is one reported observation after encoding.
//
// Confidence is the only field mutated after creation, and only by a fusion
// round. State is immutable once encoded.
type Signal struct {
	ID         string
	Source     SourceClass
	Timestamp  time.Time
	Location   Location
	Category   string
	Magnitude  float64
	Confidence float64
	Phase      float64
	State      []complex128
	Metadata   map[string]string
	Seq        int64
}

// Clone returns a deep copy of the signal.
func (s Signal) Clone() Signal {
	out := s
	out.State = slices.Clone(s.State)
	out.Metadata = maps.Clone(s.Metadata)
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
