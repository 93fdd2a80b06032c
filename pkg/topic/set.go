package topic

import (
	"sort"
	"strings"
)

// Set is a deduplicated collection of topic paths, keyed by each
// path's canonical structural key. The zero value is an empty set
// ready for use. Sets are not safe for concurrent mutation; callers
// guard them with their own synchronization.
type Set struct {
	members map[string]Path
}

// NewSet builds a set from the given paths. Duplicates collapse.
func NewSet(paths ...Path) *Set {
	s := &Set{}
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts a path. Adding an existing member or a zero path is a
// no-op. Returns true if the set changed.
func (s *Set) Add(p Path) bool {
	if p.IsZero() {
		return false
	}
	if s.members == nil {
		s.members = make(map[string]Path)
	}
	if _, exists := s.members[p.key]; exists {
		return false
	}
	s.members[p.key] = p
	return true
}

// Remove deletes a path. Returns true if the set changed.
func (s *Set) Remove(p Path) bool {
	if _, exists := s.members[p.key]; !exists {
		return false
	}
	delete(s.members, p.key)
	return true
}

// Contains reports membership by structural equality.
func (s *Set) Contains(p Path) bool {
	if s == nil || p.IsZero() {
		return false
	}
	_, exists := s.members[p.key]
	return exists
}

// Len returns the number of member paths.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

// Equal reports whether both sets contain exactly the same topics,
// regardless of insertion order. A nil set equals an empty set.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for key := range s.members {
		if _, exists := other.members[key]; !exists {
			return false
		}
	}
	return true
}

// Union returns a new set containing the members of both sets.
func (s *Set) Union(other *Set) *Set {
	out := s.Clone()
	if other != nil {
		for _, p := range other.members {
			out.Add(p)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	out := &Set{}
	if s != nil {
		for _, p := range s.members {
			out.Add(p)
		}
	}
	return out
}

// Paths returns the member paths sorted by canonical key, so the
// result is deterministic for a given membership.
func (s *Set) Paths() []Path {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.members))
	for key := range s.members {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Path, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.members[key])
	}
	return out
}

// FilterString renders the set as the push endpoint's topic filter:
// each path's segments joined by "/", paths joined by ",". Paths are
// emitted in canonical key order so equal sets render identically.
func (s *Set) FilterString() string {
	paths := s.Paths()
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, PathDelimiter)
}
