package domain

import "strings"

// OriginSet is an ordered, immutable set of allowed browser origins.
// The zero value allows nothing.
type OriginSet struct {
	origins []string
	index   map[string]struct{}
}

// NewOriginSet builds a set from origins. Entries are trimmed, empty entries
// are dropped and duplicates keep their first position.
func NewOriginSet(origins ...string) OriginSet {
	set := OriginSet{
		origins: make([]string, 0, len(origins)),
		index:   make(map[string]struct{}, len(origins)),
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if _, ok := set.index[origin]; ok {
			continue
		}
		set.index[origin] = struct{}{}
		set.origins = append(set.origins, origin)
	}
	return set
}

// ParseOriginSet builds a set from a comma-separated list.
func ParseOriginSet(list string) OriginSet {
	return NewOriginSet(strings.Split(list, ",")...)
}

// Allows reports whether origin is a member. An empty origin is never allowed.
func (s OriginSet) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := s.index[origin]
	return ok
}

// List returns the origins in configuration order.
func (s OriginSet) List() []string {
	out := make([]string, len(s.origins))
	copy(out, s.origins)
	return out
}

func (s OriginSet) Len() int {
	return len(s.origins)
}
