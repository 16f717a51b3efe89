// Package config loads engine configuration files.
//
// Files may be written in CUE (.cue), YAML (.yaml, .yml) or JSON (.json).
// Every file is unified with the embedded #Config schema, which supplies
// defaults and bounds, and then decoded into engine.Config. Errors carry the
// file position reported by CUE.
package config
