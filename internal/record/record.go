// Package record models the log records flowing through the pipeline.
//
// A Record is an immutable snapshot of a single log call as produced by the
// upstream logging framework: a message, a severity level, a channel, and two
// open-ended string-keyed trees (Context and Extra). The package also provides
// the nested-path lookup helpers used by signature extraction, so callers never
// reach into the trees with raw type assertions.
package record

import (
	"strings"
	"time"
)

// Record is a single log event. Fields mirror the upstream logging framework's
// record shape; the pipeline treats every Record as read-only.
type Record struct {
	Time    time.Time      `json:"time"`
	Channel string         `json:"channel"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Exception returns the exception attached to the record's context under the
// "exception" key, or nil when none is present. Both a native *Exception and
// the decoded-JSON map shape are accepted.
func (r *Record) Exception() *Exception {
	if r == nil || r.Context == nil {
		return nil
	}
	return ExceptionFrom(r.Context["exception"])
}

// Caller returns the pre-captured caller frame from extra["caller"], or nil.
// The frame is populated upstream by the introspection collector; the
// signature generator uses it to anchor plain-message records.
func (r *Record) Caller() *Frame {
	if r == nil || r.Extra == nil {
		return nil
	}
	return FrameFrom(r.Extra["caller"])
}

// At walks a dot-separated path through a nested string-keyed tree and returns
// the value found there. The second result is false when any path segment is
// missing or a non-map value is reached before the final segment.
func At(m map[string]any, path string) (any, bool) {
	if m == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	current := m
	for i, seg := range segments {
		v, ok := current[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// StringAt returns the non-empty string at the given path. Non-string and
// empty values report false; extraction treats both as absent.
func StringAt(m map[string]any, path string) (string, bool) {
	v, ok := At(m, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// MapAt returns the nested map at the given path, if present.
func MapAt(m map[string]any, path string) (map[string]any, bool) {
	v, ok := At(m, path)
	if !ok {
		return nil, false
	}
	sub, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return sub, true
}

// IntAt returns the integer at the given path, accepting the numeric types
// JSON decoding produces.
func IntAt(m map[string]any, path string) (int, bool) {
	v, ok := At(m, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
