package topic

import (
	"errors"
	"testing"
)

func TestNewPath(t *testing.T) {
	t.Run("StringAndIntSegments", func(t *testing.T) {
		p, err := NewPath("meters", 7, "power")
		if err != nil {
			t.Fatalf("NewPath failed: %v", err)
		}
		if p.Len() != 3 {
			t.Errorf("expected 3 segments, got %d", p.Len())
		}
		if p.String() != "meters/7/power" {
			t.Errorf("expected wire form meters/7/power, got %s", p.String())
		}
	})

	t.Run("IntegerKindsNormalize", func(t *testing.T) {
		a := MustPath("e", int32(9))
		b := MustPath("e", int64(9))
		if !a.Equal(b) {
			t.Error("expected int32 and int64 segments to compare equal")
		}
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := NewPath()
		if !errors.Is(err, ErrEmptyPath) {
			t.Errorf("expected ErrEmptyPath, got %v", err)
		}
	})

	t.Run("InvalidSegmentType", func(t *testing.T) {
		_, err := NewPath("a", 1.5)
		if !errors.Is(err, ErrInvalidSegment) {
			t.Errorf("expected ErrInvalidSegment, got %v", err)
		}
	})

	t.Run("DelimiterInString", func(t *testing.T) {
		for _, bad := range []string{"a/b", "a,b"} {
			_, err := NewPath(bad)
			if !errors.Is(err, ErrDelimiterInString) {
				t.Errorf("segment %q: expected ErrDelimiterInString, got %v", bad, err)
			}
		}
	})
}

func TestPathEquality(t *testing.T) {
	t.Run("SameSegmentsEqual", func(t *testing.T) {
		a := MustPath("meters", 7)
		b := MustPath("meters", 7)
		if !a.Equal(b) {
			t.Error("expected structurally equal paths to compare equal")
		}
		if a.Key() != b.Key() {
			t.Error("expected equal paths to share a key")
		}
	})

	t.Run("StringVsIntSegmentDiffer", func(t *testing.T) {
		// "7" the string and 7 the integer are different topics.
		a := MustPath("meters", "7")
		b := MustPath("meters", 7)
		if a.Equal(b) {
			t.Error("expected string and integer segments to differ")
		}
	})

	t.Run("OrderMatters", func(t *testing.T) {
		a := MustPath("a", "b")
		b := MustPath("b", "a")
		if a.Equal(b) {
			t.Error("expected segment order to matter")
		}
	})
}

func TestFromJSON(t *testing.T) {
	t.Run("ValidPayload", func(t *testing.T) {
		p, err := FromJSON([]byte(`["meters", 7, "power"]`))
		if err != nil {
			t.Fatalf("FromJSON failed: %v", err)
		}
		if !p.Equal(MustPath("meters", 7, "power")) {
			t.Errorf("unexpected path %s", p)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		orig := MustPath("zones", 2, "load")
		data, err := orig.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON failed: %v", err)
		}
		parsed, err := FromJSON(data)
		if err != nil {
			t.Fatalf("FromJSON failed: %v", err)
		}
		if !parsed.Equal(orig) {
			t.Errorf("round trip changed path: %s != %s", parsed, orig)
		}
	})

	t.Run("RejectsNonIntegralNumber", func(t *testing.T) {
		_, err := FromJSON([]byte(`["a", 1.5]`))
		if !errors.Is(err, ErrInvalidSegment) {
			t.Errorf("expected ErrInvalidSegment, got %v", err)
		}
	})

	t.Run("RejectsNestedStructures", func(t *testing.T) {
		for _, payload := range []string{
			`["a", {"k": 1}]`,
			`["a", [1]]`,
			`["a", true]`,
			`["a", null]`,
			`{"not": "an array"}`,
			`not json`,
		} {
			if _, err := FromJSON([]byte(payload)); err == nil {
				t.Errorf("payload %s: expected error", payload)
			}
		}
	})

	t.Run("RejectsEmptyArray", func(t *testing.T) {
		_, err := FromJSON([]byte(`[]`))
		if !errors.Is(err, ErrEmptyPath) {
			t.Errorf("expected ErrEmptyPath, got %v", err)
		}
	})
}

func TestPathSegmentsCopy(t *testing.T) {
	p := MustPath("a", 1)
	segs := p.Segments()
	segs[0] = "mutated"
	if p.Segments()[0] != "a" {
		t.Error("Segments must return a copy")
	}
}
