package engine

import (
	"github.com/google/uuid"
)

// IDGenerator produces signal identifiers.
// Implemented by UUIDv7Generator (production); tests inject fixed sequences.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 signal ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// ingestion time, which helps when reading audit logs.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
