package model

// Version constants for the snapshot schema and engine.
const (
	// SnapshotVersion is the export schema version.
	SnapshotVersion = "1"

	// EngineVersion is the sigfuse engine version.
	EngineVersion = "0.1.0"
)
