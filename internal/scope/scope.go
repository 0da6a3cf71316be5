// Package scope implements the access scope value types requested from an
// identity authority during token exchange.
//
// A scope is an immutable set of opaque scope identifiers. Scopes compose
// with set algebra (union, intersection, difference, symmetric difference)
// and compare independent of construction order. Each hosting provider has
// its own scope family as a distinct Go type, so scopes from different
// providers cannot be combined by accident.
package scope

import (
	"sort"
	"strings"
)

// set is the order-independent backing store shared by all scope families.
type set map[string]struct{}

func newSet(items ...string) set {
	s := make(set, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		s[item] = struct{}{}
	}
	return s
}

func (s set) union(o set) set {
	r := make(set, len(s)+len(o))
	for k := range s {
		r[k] = struct{}{}
	}
	for k := range o {
		r[k] = struct{}{}
	}
	return r
}

func (s set) intersect(o set) set {
	r := make(set)
	for k := range s {
		if _, ok := o[k]; ok {
			r[k] = struct{}{}
		}
	}
	return r
}

func (s set) difference(o set) set {
	r := make(set)
	for k := range s {
		if _, ok := o[k]; !ok {
			r[k] = struct{}{}
		}
	}
	return r
}

func (s set) symmetricDifference(o set) set {
	return s.difference(o).union(o.difference(s))
}

func (s set) equal(o set) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// sorted returns the members in deterministic order for the wire form.
func (s set) sorted() []string {
	items := make([]string, 0, len(s))
	for k := range s {
		items = append(items, k)
	}
	sort.Strings(items)
	return items
}

func (s set) String() string {
	return strings.Join(s.sorted(), " ")
}
