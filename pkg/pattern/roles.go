package pattern

import "sort"

// RoleSet is an unordered set of role identifiers.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether role is in the set. A nil set holds nothing.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Toggle flips membership of role and reports whether it is now present.
func (s RoleSet) Toggle(role string) bool {
	if _, ok := s[role]; ok {
		delete(s, role)
		return false
	}
	s[role] = struct{}{}
	return true
}

// Clone returns an independent copy.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s RoleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same roles.
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}
