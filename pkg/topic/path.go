package topic

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Topic errors.
var (
	ErrEmptyPath         = errors.New("topic path must have at least one segment")
	ErrInvalidSegment    = errors.New("topic segment must be a string or an integer")
	ErrDelimiterInString = errors.New("topic segment contains a delimiter character")
)

// Wire filter delimiters. Segments are joined by SegmentDelimiter,
// paths by PathDelimiter.
const (
	SegmentDelimiter = "/"
	PathDelimiter    = ","
)

// Path is a structural subscription key: an ordered sequence of
// string and integer segments naming one entity. Paths are immutable
// after construction and compared structurally via Key.
type Path struct {
	segments []any
	key      string
}

// NewPath builds a path from the given segments. Accepted segment
// types are string and the signed integer kinds (normalized to int64).
// Strings containing the wire delimiters are rejected.
func NewPath(segments ...any) (Path, error) {
	if len(segments) == 0 {
		return Path{}, ErrEmptyPath
	}

	normalized := make([]any, 0, len(segments))
	for _, seg := range segments {
		switch v := seg.(type) {
		case string:
			if strings.ContainsAny(v, SegmentDelimiter+PathDelimiter) {
				return Path{}, fmt.Errorf("%w: %q", ErrDelimiterInString, v)
			}
			normalized = append(normalized, v)
		case int:
			normalized = append(normalized, int64(v))
		case int8:
			normalized = append(normalized, int64(v))
		case int16:
			normalized = append(normalized, int64(v))
		case int32:
			normalized = append(normalized, int64(v))
		case int64:
			normalized = append(normalized, v)
		case uint8:
			normalized = append(normalized, int64(v))
		case uint16:
			normalized = append(normalized, int64(v))
		case uint32:
			normalized = append(normalized, int64(v))
		default:
			return Path{}, fmt.Errorf("%w: %T", ErrInvalidSegment, seg)
		}
	}

	return Path{segments: normalized, key: canonicalKey(normalized)}, nil
}

// MustPath is NewPath for statically known segments. It panics on
// invalid input and is intended for tests and constants.
func MustPath(segments ...any) Path {
	p, err := NewPath(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// FromJSON parses a push payload: a JSON array of primitive segments.
// Strings and integral numbers are accepted; anything else (objects,
// nested arrays, fractions, booleans, null) fails with
// ErrInvalidSegment.
func FromJSON(data []byte) (Path, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Path{}, fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}

	segments := make([]any, 0, len(raw))
	for _, seg := range raw {
		switch v := seg.(type) {
		case string:
			segments = append(segments, v)
		case float64:
			// encoding/json decodes all numbers as float64; only
			// integral values are valid topic segments.
			if v != math.Trunc(v) || math.Abs(v) > math.MaxInt64 {
				return Path{}, fmt.Errorf("%w: non-integral number %v", ErrInvalidSegment, v)
			}
			segments = append(segments, int64(v))
		default:
			return Path{}, fmt.Errorf("%w: %T", ErrInvalidSegment, seg)
		}
	}

	return NewPath(segments...)
}

// IsZero reports whether the path is the zero value (no segments).
func (p Path) IsZero() bool {
	return len(p.segments) == 0
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// Segments returns a copy of the path's segments. Each element is a
// string or an int64.
func (p Path) Segments() []any {
	out := make([]any, len(p.segments))
	copy(out, p.segments)
	return out
}

// Key returns the canonical structural key. Two paths are the same
// topic iff their keys are equal.
func (p Path) Key() string {
	return p.key
}

// Equal reports structural equality with another path.
func (p Path) Equal(other Path) bool {
	return p.key == other.key && len(p.segments) == len(other.segments)
}

// String returns the wire form of the path: segments joined by "/".
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p.segments {
		if i > 0 {
			b.WriteString(SegmentDelimiter)
		}
		switch v := seg.(type) {
		case string:
			b.WriteString(v)
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		}
	}
	return b.String()
}

// MarshalJSON renders the path as a JSON array of its segments, the
// same shape the push stream delivers.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.segments)
}

// canonicalKey builds the structural hash key. Strings are quoted so
// the string segment "7" and the integer segment 7 produce distinct
// keys.
func canonicalKey(segments []any) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString(SegmentDelimiter)
		}
		switch v := seg.(type) {
		case string:
			b.WriteString(strconv.Quote(v))
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		}
	}
	return b.String()
}
