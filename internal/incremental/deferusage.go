package incremental

// DeferUsage is the identity of one @defer scope in a query. Two DeferUsages
// are identity-equal, never structurally equal: always compare *DeferUsage
// pointers, never their field values.
type DeferUsage struct {
	Label  string
	Parent *DeferUsage
}

// NewDeferUsage creates a new, distinct defer scope with the given label
// (may be empty) and parent scope (nil for a top-level @defer).
func NewDeferUsage(label string, parent *DeferUsage) *DeferUsage {
	return &DeferUsage{Label: label, Parent: parent}
}

// IsAncestorOf reports whether d is a (possibly indirect) ancestor of u,
// i.e. u's parent chain reaches d. A DeferUsage is not its own ancestor.
func (d *DeferUsage) IsAncestorOf(u *DeferUsage) bool {
	if d == nil || u == nil {
		return false
	}
	for p := u.Parent; p != nil; p = p.Parent {
		if p == d {
			return true
		}
	}
	return false
}

// DeferUsageSet is a set of defer-usages, keyed by pointer identity.
type DeferUsageSet map[*DeferUsage]struct{}

// NewDeferUsageSet builds a set from the given usages.
func NewDeferUsageSet(usages ...*DeferUsage) DeferUsageSet {
	s := make(DeferUsageSet, len(usages))
	for _, u := range usages {
		s[u] = struct{}{}
	}
	return s
}

// Add inserts u into the set.
func (s DeferUsageSet) Add(u *DeferUsage) { s[u] = struct{}{} }

// Has reports whether u is a member.
func (s DeferUsageSet) Has(u *DeferUsage) bool {
	_, ok := s[u]
	return ok
}

// Clone returns a shallow copy of s.
func (s DeferUsageSet) Clone() DeferUsageSet {
	out := make(DeferUsageSet, len(s))
	for u := range s {
		out[u] = struct{}{}
	}
	return out
}

// Equal reports structural equality: same members, identity-compared.
func (s DeferUsageSet) Equal(other DeferUsageSet) bool {
	if len(s) != len(other) {
		return false
	}
	for u := range s {
		if !other.Has(u) {
			return false
		}
	}
	return true
}

// Slice returns the set's members in unspecified order.
func (s DeferUsageSet) Slice() []*DeferUsage {
	out := make([]*DeferUsage, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	return out
}
