// Package types contains common types used across the application
package types

import "encoding/json"

// ScoreEntry is the read shape for a single course in the snapshot.
// Raw, Intensity and Color are set only when the requested field resolves
// to an in-range score.
type ScoreEntry struct {
	ID        string          `json:"id" yaml:"id"`
	Scores    json.RawMessage `json:"scores" yaml:"-"`
	Raw       *float64        `json:"raw,omitempty" yaml:"raw,omitempty"`
	Intensity *float64        `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Color     string          `json:"color,omitempty" yaml:"color,omitempty"`
}

// Normalized pairs a raw score with its display intensity.
type Normalized struct {
	Raw       float64 `json:"raw" yaml:"raw"`
	Intensity float64 `json:"intensity" yaml:"intensity"`
	Color     string  `json:"color" yaml:"color"`
}
