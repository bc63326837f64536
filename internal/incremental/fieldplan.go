package incremental

// FieldDetail is one field reference contributing to a FieldGroup: the AST
// node is left to the caller (the executor owns *language.Field), so this
// package only needs the defer-usage it is visible under and an opaque
// handle the caller can round-trip.
type FieldDetail struct {
	// Node is the caller-owned AST field node (an *language.Field in
	// practice). Kept as `any` so this package has no dependency on the
	// executor/language packages.
	Node any
	// DeferUsage is the @defer scope this reference is visible under, or
	// nil if it is part of the original (non-deferred) result.
	DeferUsage *DeferUsage
}

// FieldGroup is a list of field references sharing one response key,
// together with the set of defer-usages it is visible under.
type FieldGroup struct {
	ResponseKey string
	Details     []FieldDetail
	DeferUsages DeferUsageSet
}

// GroupedFieldSet is an insertion-ordered mapping from response-key to
// FieldGroup. Ordering must be preserved so response field order matches
// query order, mirroring executor.collectedFieldMap.
type GroupedFieldSet struct {
	keys   []string
	index  map[string]int
	groups []*FieldGroup
}

// NewGroupedFieldSet returns an empty, ready-to-use GroupedFieldSet.
func NewGroupedFieldSet() *GroupedFieldSet {
	return &GroupedFieldSet{index: make(map[string]int)}
}

// Add appends detail to the FieldGroup for responseKey, creating it (with
// deferUsages) if this is the first reference to that key.
func (g *GroupedFieldSet) Add(responseKey string, detail FieldDetail, deferUsages DeferUsageSet) {
	if idx, ok := g.index[responseKey]; ok {
		g.groups[idx].Details = append(g.groups[idx].Details, detail)
		return
	}
	g.index[responseKey] = len(g.groups)
	g.keys = append(g.keys, responseKey)
	g.groups = append(g.groups, &FieldGroup{
		ResponseKey: responseKey,
		Details:     []FieldDetail{detail},
		DeferUsages: deferUsages,
	})
}

// Get returns the FieldGroup for responseKey, if any.
func (g *GroupedFieldSet) Get(responseKey string) (*FieldGroup, bool) {
	idx, ok := g.index[responseKey]
	if !ok {
		return nil, false
	}
	return g.groups[idx], true
}

// Fields returns the field groups in response order.
func (g *GroupedFieldSet) Fields() []*FieldGroup {
	return g.groups
}

// Len reports the number of distinct response keys.
func (g *GroupedFieldSet) Len() int { return len(g.groups) }

// CollectedField is one response-key's worth of field references prior to
// defer-scope partitioning: the executor's field-collection step produces
// these in response order.
type CollectedField struct {
	ResponseKey string
	Details     []FieldDetail
}

// CollectedFields is an ordered list of CollectedField, one per response key.
type CollectedFields []CollectedField

// deferUsageSetEntry pairs a structurally-keyed DeferUsageSet with the
// sub-GroupedFieldSet it routes to. Lookup is linear per spec §9: the
// builder guarantees small arity (distinct defer scopes per selection set).
type deferUsageSetEntry struct {
	key             DeferUsageSet
	groupedFieldSet *GroupedFieldSet
	shouldInitiate  bool
}

// NewGroupedFieldSetMap is an ordered collection of deferUsageSetEntry,
// keyed by structural DeferUsageSet equality with first-inserted-wins
// canonicalization.
type NewGroupedFieldSetMap struct {
	entries []*deferUsageSetEntry
}

// newNewGroupedFieldSetMap returns an empty map.
func newNewGroupedFieldSetMap() *NewGroupedFieldSetMap {
	return &NewGroupedFieldSetMap{}
}

// getOrCreate returns the canonical entry for a structurally-equal key,
// creating one (with shouldInitiate computed from newness) if none exists.
func (m *NewGroupedFieldSetMap) getOrCreate(key DeferUsageSet, shouldInitiate bool) *deferUsageSetEntry {
	for _, e := range m.entries {
		if e.key.Equal(key) {
			return e
		}
	}
	e := &deferUsageSetEntry{key: key, groupedFieldSet: NewGroupedFieldSet(), shouldInitiate: shouldInitiate}
	m.entries = append(m.entries, e)
	return e
}

// Entries exposes the map's entries in insertion order.
func (m *NewGroupedFieldSetMap) Entries() []*deferUsageSetEntry { return m.entries }

// Key returns the entry's canonical DeferUsageSet key.
func (e *deferUsageSetEntry) Key() DeferUsageSet { return e.key }

// GroupedFieldSet returns the entry's sub-GroupedFieldSet.
func (e *deferUsageSetEntry) GroupedFieldSet() *GroupedFieldSet { return e.groupedFieldSet }

// ShouldInitiateDefer reports whether this sub-group introduces at least
// one defer-usage not already active in the parent scope.
func (e *deferUsageSetEntry) ShouldInitiateDefer() bool { return e.shouldInitiate }

// FieldPlan is the result of partitioning a collected field set by
// defer-scope: what executes now (GroupedFieldSet) versus what is deferred
// to later (NewGroupedFieldSets), plus which defer-usages are new at this
// level (NewDeferUsages).
type FieldPlan struct {
	GroupedFieldSet     *GroupedFieldSet
	NewGroupedFieldSets *NewGroupedFieldSetMap
	NewDeferUsages      []*DeferUsage
}

// BuildFieldPlan partitions fields according to which @defer scopes each
// field belongs to, implementing spec §4.1:
//
//  1. For each response key, collect the set U of defer-usages across its
//     field-details. A detail with no defer-usage clears U entirely (it
//     belongs to the original result).
//  2. Trim U: drop any usage whose ancestor is also in U (the ancestor
//     already covers it).
//  3. If U equals parentDeferUsages, the field executes in the current
//     scope. Otherwise it routes to the sub-group keyed by U.
//
// knownDeferUsages, if non-nil, is used to compute NewDeferUsages: usages
// appearing in some routed-to U that are not already in knownDeferUsages.
func BuildFieldPlan(fields CollectedFields, parentDeferUsages DeferUsageSet, knownDeferUsages DeferUsageSet) *FieldPlan {
	groupedFieldSet := NewGroupedFieldSet()
	newGroupedFieldSets := newNewGroupedFieldSetMap()
	newDeferUsageSeen := make(map[*DeferUsage]struct{})
	var newDeferUsages []*DeferUsage

	isKnown := func(u *DeferUsage) bool {
		if knownDeferUsages == nil {
			return false
		}
		return knownDeferUsages.Has(u)
	}

	for _, cf := range fields {
		usages := collectUsages(cf.Details)
		trimmed := trimAncestorCoveredUsages(usages)

		if trimmed.Equal(parentDeferUsages) {
			for _, d := range cf.Details {
				groupedFieldSet.Add(cf.ResponseKey, d, trimmed)
			}
			continue
		}

		shouldInitiate := false
		for u := range trimmed {
			if !parentDeferUsages.Has(u) {
				shouldInitiate = true
			}
			if !isKnown(u) {
				if _, seen := newDeferUsageSeen[u]; !seen {
					newDeferUsageSeen[u] = struct{}{}
					newDeferUsages = append(newDeferUsages, u)
				}
			}
		}

		entry := newGroupedFieldSets.getOrCreate(trimmed, shouldInitiate)
		for _, d := range cf.Details {
			entry.groupedFieldSet.Add(cf.ResponseKey, d, trimmed)
		}
	}

	return &FieldPlan{
		GroupedFieldSet:     groupedFieldSet,
		NewGroupedFieldSets: newGroupedFieldSets,
		NewDeferUsages:      newDeferUsages,
	}
}

// collectUsages gathers the set of distinct defer-usages across a field's
// details. If any detail carries no defer-usage, the field is visible in
// the original (undeferred) result and the set is cleared entirely.
func collectUsages(details []FieldDetail) DeferUsageSet {
	set := make(DeferUsageSet)
	for _, d := range details {
		if d.DeferUsage == nil {
			return DeferUsageSet{}
		}
		set.Add(d.DeferUsage)
	}
	return set
}

// trimAncestorCoveredUsages removes any usage from the set whose ancestor
// is also present: the ancestor's defer scope already covers it.
func trimAncestorCoveredUsages(usages DeferUsageSet) DeferUsageSet {
	if len(usages) == 0 {
		return usages
	}
	trimmed := make(DeferUsageSet, len(usages))
	for u := range usages {
		covered := false
		for p := u.Parent; p != nil; p = p.Parent {
			if usages.Has(p) {
				covered = true
				break
			}
		}
		if !covered {
			trimmed.Add(u)
		}
	}
	return trimmed
}
