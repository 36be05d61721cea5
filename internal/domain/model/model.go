// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// CourseMap maps a course or section identifier to backend-owned data.
type CourseMap[T any] map[string]T

// Scores is a backend-defined score record. It is passed through as raw
// JSON and only interpreted by consumers via Number.
type Scores json.RawMessage

// ScoreMap is the full score snapshot returned for a scores request.
type ScoreMap = CourseMap[Scores]

// MarshalJSON emits the record verbatim.
func (s Scores) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

// UnmarshalJSON keeps a copy of the raw record.
func (s *Scores) UnmarshalJSON(data []byte) error {
	*s = append((*s)[:0], data...)
	return nil
}

// Number reads a numeric value from the record. With an empty field the
// record itself must be a number; otherwise field names a top-level key.
// Numbers encoded as JSON strings are accepted.
func (s Scores) Number(field string) (float64, bool) {
	raw := json.RawMessage(s)
	if field != "" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return 0, false
		}
		v, ok := obj[field]
		if !ok {
			return 0, false
		}
		raw = v
	}
	return number(raw)
}

func number(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
