package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CategorySet is a set of free-form category names. Stored records keep it
// as a comma-space delimited string ("Arts, Food, Music"); the set form is
// used everywhere else.
type CategorySet map[string]struct{}

// NewCategorySet builds a set from names, ignoring blanks.
func NewCategorySet(names ...string) CategorySet {
	s := make(CategorySet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// ParseCategories splits a delimited category string.
func ParseCategories(list string) CategorySet {
	return NewCategorySet(strings.Split(list, ",")...)
}

// Has reports whether name is in the set.
func (s CategorySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Intersects reports whether the two sets share at least one category.
func (s CategorySet) Intersects(other CategorySet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for name := range small {
		if large.Has(name) {
			return true
		}
	}
	return false
}

// Sorted returns the members in lexical order.
func (s CategorySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// String joins the set in its stored form.
func (s CategorySet) String() string {
	return strings.Join(s.Sorted(), ", ")
}

// MarshalJSON writes the stored string form.
func (s CategorySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the stored string form, a JSON array of names, or
// an object whose values are names.
func (s *CategorySet) UnmarshalJSON(data []byte) error {
	var list string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = ParseCategories(list)
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		*s = NewCategorySet(names...)
		return nil
	}
	// Arrays written through the document tree read back keyed by index.
	var indexed map[string]string
	if err := json.Unmarshal(data, &indexed); err != nil {
		return fmt.Errorf("category list: expected string, array or object: %w", err)
	}
	*s = NewCategorySet()
	for _, name := range indexed {
		if name = strings.TrimSpace(name); name != "" {
			(*s)[name] = struct{}{}
		}
	}
	return nil
}
