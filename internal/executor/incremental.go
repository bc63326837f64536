package executor

import (
	"context"
	"fmt"
	"reflect"
	"time"

	eventbus "github.com/hanpama/protograph/internal/eventbus"
	events "github.com/hanpama/protograph/internal/events"
	incremental "github.com/hanpama/protograph/internal/incremental"
	language "github.com/hanpama/protograph/internal/language"
	schema "github.com/hanpama/protograph/internal/schema"

	"github.com/google/uuid"
)

// IncrementalPath renders a GraphQLError's path in the incremental
// package's shape, so errors raised during incremental execution carry a
// response path in their outgoing payload (see incremental.LocatedError).
func (e GraphQLError) IncrementalPath() incremental.Path {
	out := make(incremental.Path, len(e.Path))
	for i, p := range e.Path {
		out[i] = p
	}
	return out
}

// --- @defer / @stream directive reading, alongside @skip/@include in fields.go ---

func directiveArgBool(state *executionState, d *language.Directive, arg string, def bool) bool {
	v, err := getDirectiveArgumentValue(state, d, arg)
	if err != nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func directiveArgString(state *executionState, d *language.Directive, arg string) string {
	v, err := getDirectiveArgumentValue(state, d, arg)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func directiveArgInt(state *executionState, d *language.Directive, arg string, def int) int {
	v, err := getDirectiveArgumentValue(state, d, arg)
	if err != nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// deferDirective returns the @defer directive on directives, or nil if
// absent or disabled via `if: false`.
func deferDirective(state *executionState, directives language.DirectiveList) *language.Directive {
	d := directives.ForName("defer")
	if d == nil || !directiveArgBool(state, d, "if", true) {
		return nil
	}
	return d
}

// streamDirective returns the @stream directive on directives, or nil if
// absent or disabled via `if: false`.
func streamDirective(state *executionState, directives language.DirectiveList) *language.Directive {
	d := directives.ForName("stream")
	if d == nil || !directiveArgBool(state, d, "if", true) {
		return nil
	}
	return d
}

func isListField(t *schema.TypeRef) bool {
	if schema.IsNonNull(t) {
		t = schema.Unwrap(t)
	}
	return schema.IsList(t)
}

// --- field collection, tagged with defer-usage ---------------------------

// incrementalFieldBuilder is collectedFieldMap's counterpart for the
// defer-aware path: same ordered, response-key-keyed accumulation, but
// storing incremental.FieldDetail (AST node + DeferUsage) instead of bare
// AST nodes.
type incrementalFieldBuilder struct {
	order   []string
	details map[string][]incremental.FieldDetail
}

func newIncrementalFieldBuilder() *incrementalFieldBuilder {
	return &incrementalFieldBuilder{details: make(map[string][]incremental.FieldDetail)}
}

func (b *incrementalFieldBuilder) add(responseKey string, field *language.Field, usage *incremental.DeferUsage) {
	if _, ok := b.details[responseKey]; !ok {
		b.order = append(b.order, responseKey)
	}
	b.details[responseKey] = append(b.details[responseKey], incremental.FieldDetail{Node: field, DeferUsage: usage})
}

func (b *incrementalFieldBuilder) build() incremental.CollectedFields {
	out := make(incremental.CollectedFields, len(b.order))
	for i, key := range b.order {
		out[i] = incremental.CollectedField{ResponseKey: key, Details: b.details[key]}
	}
	return out
}

// collectFieldsIncremental mirrors collectFields, additionally tagging each
// field with the DeferUsage of the nearest enclosing @defer'd fragment
// spread or inline fragment (current, possibly nil at the query root).
func collectFieldsIncremental(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, current *incremental.DeferUsage) incremental.CollectedFields {
	b := newIncrementalFieldBuilder()
	visited := make(map[string]bool)
	collectFieldsIncrementalImpl(state, objectType, selectionSet, b, visited, current)
	return b.build()
}

func collectFieldsIncrementalImpl(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, b *incrementalFieldBuilder, visited map[string]bool, current *incremental.DeferUsage) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			b.add(responseName, sel, current)

		case *language.InlineFragment:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			if sel.TypeCondition != "" && sel.TypeCondition != objectType.Name {
				continue
			}
			usage := current
			if d := deferDirective(state, sel.Directives); d != nil {
				usage = incremental.NewDeferUsage(directiveArgString(state, d, "label"), current)
			}
			collectFieldsIncrementalImpl(state, objectType, sel.SelectionSet, b, visited, usage)

		case *language.FragmentSpread:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			fragmentDef := getFragmentDefinition(state.document, sel.Name)
			if fragmentDef == nil {
				continue
			}
			if fragmentDef.TypeCondition != "" && fragmentDef.TypeCondition != objectType.Name {
				continue
			}
			if !shouldIncludeNode(state, fragmentDef.Directives) {
				continue
			}
			usage := current
			if d := deferDirective(state, sel.Directives); d != nil {
				usage = incremental.NewDeferUsage(directiveArgString(state, d, "label"), current)
			}
			// The same spread can be visited once per distinct enclosing
			// defer-usage (once undeferred, once under @defer), so the
			// visited key includes the usage pointer, not just the name.
			visitKey := fmt.Sprintf("%s\x00%p", sel.Name, usage)
			if visited[visitKey] {
				continue
			}
			visited[visitKey] = true
			collectFieldsIncrementalImpl(state, objectType, fragmentDef.SelectionSet, b, visited, usage)
		}
	}
}

func fieldNodes(details []incremental.FieldDetail) []*language.Field {
	out := make([]*language.Field, len(details))
	for i, d := range details {
		out[i] = d.Node.(*language.Field)
	}
	return out
}

func toExecPath(p incremental.Path) Path {
	out := make(Path, len(p))
	for i, e := range p {
		out[i] = e
	}
	return out
}

func toAnySlice(result any) ([]any, bool) {
	if direct, ok := result.([]any); ok {
		return direct, true
	}
	rv := reflect.ValueOf(result)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// --- incremental execution -------------------------------------------------

// incrementalExec threads the set of already-known DeferUsages, and the
// DeferredFragmentRecord each one maps to, through one request's recursive
// execution.
//
// Known simplification: when two sibling @defer'd fragments merge onto the
// same response key (so a field-plan entry's key carries more than one
// DeferUsage at once), this layer only threads one representative usage
// into the nested recursion as the baseline for further field collection.
// The core Field Plan Builder handles arbitrary overlap correctly (see
// fieldplan_test.go); this executor integration's simplification only
// affects fields nested inside *simultaneously* overlapping defers, not the
// common case of sequential/nested non-overlapping @defer.
type incrementalExec struct {
	state      *executionState
	known      incremental.DeferUsageSet
	fragments  map[*incremental.DeferUsage]*incremental.DeferredFragmentRecord
	traceHints map[*incremental.DeferredFragmentRecord]string
}

func pathToAny(p incremental.Path) []any {
	if len(p) == 0 {
		return nil
	}
	out := make([]any, len(p))
	for i, e := range p {
		out[i] = e
	}
	return out
}

func (ex *incrementalExec) fragmentFor(u *incremental.DeferUsage, path incremental.Path) *incremental.DeferredFragmentRecord {
	if f, ok := ex.fragments[u]; ok {
		return f
	}
	var parent *incremental.DeferredFragmentRecord
	if u.Parent != nil {
		parent = ex.fragments[u.Parent]
	}
	f := incremental.NewDeferredFragmentRecord(path, u.Label, parent)
	ex.fragments[u] = f

	hint := uuid.New().String()
	ex.traceHints[f] = hint
	eventbus.Publish(ex.state.context, events.DeferFragmentStart{
		Label:     u.Label,
		Path:      pathToAny(path),
		TraceHint: hint,
	})
	return f
}

// ExecuteRequestIncremental executes operation exactly as ExecuteRequest
// does, except fields under @defer or @stream are split out through the
// incremental delivery engine: the returned InitialResult is the request's
// initial, synchronous payload (already in wire shape, including any newly
// promoted "pending" entries), and the returned Subsequent (nil when no
// incremental work is pending after the initial payload) drains the rest.
//
// Deferred execution groups and stream items are, today, resolved eagerly
// alongside the rest of the request rather than overlapped with slower
// sibling work: incremental.Lazy treats an already-resolved value exactly
// like an async one, so the delivery split this produces is wire-correct,
// it just doesn't yet buy the wall-clock benefit a truly concurrent
// resolver path would — wiring PendingExecutionGroup.Result against the
// existing async/batched machinery (state.asyncTaskGroup) is future work.
func (e *Executor) ExecuteRequestIncremental(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) (result *incremental.InitialResult, sub incremental.Subsequent) {
	// Invariant violations inside the incremental bookkeeping (graph/publisher
	// assertions) are programmer errors per spec: defensively logged here via
	// events.IncrementalPanic, then re-raised so the caller's own recovery
	// (e.g. net/http's per-connection recover) still treats it as a crash.
	defer func() {
		if r := recover(); r != nil {
			eventbus.Publish(ctx, events.IncrementalPanic{Recovered: r})
			panic(r)
		}
	}()

	operation := getOperation(document, operationName)
	if operation == nil {
		return &incremental.InitialResult{Errors: []incremental.PayloadError{{Message: "operation not found"}}}, nil
	}

	coercedVariableValues, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return &incremental.InitialResult{Errors: []incremental.PayloadError{{Message: err.Error()}}}, nil
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	default:
		return &incremental.InitialResult{Errors: []incremental.PayloadError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}, nil
	}
	if rootType == nil {
		return &incremental.InitialResult{Errors: []incremental.PayloadError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}, nil
	}

	state := &executionState{
		runtime:         e.runtime,
		schema:          e.schema,
		document:        document,
		variableValues:  coercedVariableValues,
		context:         ctx,
		asyncTaskGroup:  []asyncTask{},
		errors:          []GraphQLError{},
		asyncTaskInfo:   make(map[NodeID]asyncTask),
		nextID:          1,
		nullifiedPrefix: make(map[string]struct{}),
	}

	ex := &incrementalExec{
		state:      state,
		known:      incremental.NewDeferUsageSet(),
		fragments:  make(map[*incremental.DeferUsage]*incremental.DeferredFragmentRecord),
		traceHints: make(map[*incremental.DeferredFragmentRecord]string),
	}
	data, records := ex.executeSelectionSetIncremental(rootType, operation.SelectionSet, initialValue, incremental.Path{}, nil, incremental.NewDeferUsageSet())

	for len(state.asyncTaskGroup) > 0 {
		filtered, results := flushAsyncTasks(state)
		for i, r := range results {
			completeAsyncField(state, filtered[i], r, data)
		}
	}

	errs := make([]error, len(state.errors))
	for i, ge := range state.errors {
		errs[i] = ge
	}

	pub := incremental.NewPublisher()
	return pub.BuildResponse(data, errs, records)
}

// executeSelectionSetIncremental partitions selectionSet's fields by
// @defer-scope via incremental.BuildFieldPlan: fields in the current scope
// are executed and written to data now; fields newly routed to a deferred
// sub-scope become a PendingExecutionGroup appended to the returned records.
func (ex *incrementalExec) executeSelectionSetIncremental(objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path incremental.Path, current *incremental.DeferUsage, parentDeferUsages incremental.DeferUsageSet) (map[string]any, []incremental.IncrementalDataRecord) {
	collected := collectFieldsIncremental(ex.state, objectType, selectionSet, current)
	plan := incremental.BuildFieldPlan(collected, parentDeferUsages, ex.known)
	for _, du := range plan.NewDeferUsages {
		ex.known.Add(du)
	}

	data := make(map[string]any)
	var records []incremental.IncrementalDataRecord

	for _, group := range plan.GroupedFieldSet.Fields() {
		fields := fieldNodes(group.Details)
		fieldPath := incremental.Append(path, group.ResponseKey)
		value, subRecords := ex.executeFieldIncremental(objectType, objectValue, fields, fieldPath, current, parentDeferUsages)
		if fieldDef := getFieldDefinition(objectType, fields[0].Name); fieldDef != nil && schema.IsNonNull(fieldDef.Type) && isNullish(value) && len(path) > 0 {
			return nil, nil
		}
		data[group.ResponseKey] = value
		records = append(records, subRecords...)
	}

	for _, entry := range plan.NewGroupedFieldSets.Entries() {
		if !entry.ShouldInitiateDefer() {
			continue
		}
		usages := entry.Key().Slice()
		var childCurrent *incremental.DeferUsage
		if len(usages) > 0 {
			childCurrent = usages[0]
		}
		frags := make([]*incremental.DeferredFragmentRecord, len(usages))
		for i, u := range usages {
			frags[i] = ex.fragmentFor(u, path)
		}

		group := &incremental.PendingExecutionGroup{DeferredFragmentRecords: frags}
		groupedFieldSet := entry.GroupedFieldSet()
		key := entry.Key()
		start := time.Now()
		completed := ex.executeDeferredGroup(objectType, objectValue, groupedFieldSet, path, group, key, childCurrent)
		group.Result = incremental.Ready(completed)
		records = append(records, group)

		var errs []error
		if completed.Failure != nil {
			errs = completed.Failure.Errors
		}
		for _, f := range frags {
			hint := ex.traceHints[f]
			eventbus.Publish(ex.state.context, events.DeferFragmentFinish{
				Label:     f.Label,
				Path:      pathToAny(f.Path),
				TraceHint: hint,
				Errors:    errs,
				Duration:  time.Since(start),
			})
		}
	}

	return data, records
}

// executeDeferredGroup executes one deferred sub-group's fields (already
// partitioned by BuildFieldPlan) and packages the outcome as a completed
// execution group ready for the Graph.
func (ex *incrementalExec) executeDeferredGroup(objectType *schema.Type, objectValue any, groupedFieldSet *incremental.GroupedFieldSet, path incremental.Path, group *incremental.PendingExecutionGroup, parentDeferUsages incremental.DeferUsageSet, current *incremental.DeferUsage) *incremental.CompletedExecutionGroupResult {
	data := make(map[string]any)
	var records []incremental.IncrementalDataRecord

	for _, fg := range groupedFieldSet.Fields() {
		fields := fieldNodes(fg.Details)
		fieldPath := incremental.Append(path, fg.ResponseKey)
		value, subRecords := ex.executeFieldIncremental(objectType, objectValue, fields, fieldPath, current, parentDeferUsages)
		data[fg.ResponseKey] = value
		records = append(records, subRecords...)
	}

	return &incremental.CompletedExecutionGroupResult{Success: &incremental.CompletedExecutionGroupSuccess{
		PendingExecutionGroup:  group,
		Path:                   path,
		Data:                   data,
		IncrementalDataRecords: records,
	}}
}

func (ex *incrementalExec) executeFieldIncremental(objectType *schema.Type, objectValue any, fields []*language.Field, path incremental.Path, current *incremental.DeferUsage, parentDeferUsages incremental.DeferUsageSet) (any, []incremental.IncrementalDataRecord) {
	state := ex.state
	field := fields[0]
	fieldName := field.Name

	if fieldName == "__typename" {
		return objectType.Name, nil
	}

	fieldDef := getFieldDefinition(objectType, fieldName)
	if fieldDef == nil {
		state.errors = append(state.errors, GraphQLError{
			Message: fmt.Sprintf("Cannot query field '%s' on type '%s'", fieldName, objectType.Name),
			Path:    toExecPath(path),
		})
		return nil, nil
	}

	argumentValues := coerceArgumentValues(fieldDef, field.Arguments, state.variableValues, state, toExecPath(path))
	resolvedValue := resolveSyncField(state, objectType.Name, fieldName, objectValue, argumentValues, toExecPath(path))

	if d := streamDirective(state, field.Directives); d != nil && isListField(fieldDef.Type) {
		value, stream := ex.executeStreamField(fieldDef, fields, resolvedValue, path, d)
		if stream == nil {
			return value, nil
		}
		return value, []incremental.IncrementalDataRecord{stream}
	}

	return ex.completeValueIncremental(fieldDef.Type, fields, resolvedValue, path, current, parentDeferUsages)
}

// executeStreamField completes a @stream'd list field: the first
// initialCount items are completed inline (part of the current scope's
// data), and the rest are queued on a StreamRecord. Item completion does
// not itself recurse through the defer-aware path — nested @defer/@stream
// inside a streamed item's own selection set is a known gap, see
// DESIGN.md.
func (ex *incrementalExec) executeStreamField(fieldDef *schema.Field, fields []*language.Field, resolvedValue any, path incremental.Path, directive *language.Directive) (any, *incremental.StreamRecord) {
	state := ex.state
	execPath := toExecPath(path)

	if isNullish(resolvedValue) {
		return nil, nil
	}
	items, ok := toAnySlice(resolvedValue)
	if !ok {
		state.errors = append(state.errors, GraphQLError{Message: fmt.Sprintf("Expected list value, got %T", resolvedValue), Path: execPath})
		return nil, nil
	}

	initialCount := directiveArgInt(state, directive, "initialCount", 0)
	if initialCount < 0 {
		initialCount = 0
	}
	if initialCount > len(items) {
		initialCount = len(items)
	}

	listType := fieldDef.Type
	if schema.IsNonNull(listType) {
		listType = schema.Unwrap(listType)
	}
	itemType := schema.Unwrap(listType)

	initial := make([]any, initialCount)
	for i := 0; i < initialCount; i++ {
		initial[i] = completeValue(state, itemType, fields, items[i], appendPath(execPath, i))
	}

	if initialCount == len(items) {
		return initial, nil
	}

	label := directiveArgString(state, directive, "label")
	hint := uuid.New().String()
	start := time.Now()
	eventbus.Publish(state.context, events.StreamStart{Label: label, Path: pathToAny(path), TraceHint: hint})

	stream := incremental.NewStreamRecord(path, label, nil)
	remaining := 0
	for i := initialCount; i < len(items); i++ {
		item := items[i]
		idx := i
		stream.Push(incremental.Ready(incremental.StreamItemResult{
			Item:    completeValue(state, itemType, fields, item, appendPath(execPath, idx)),
			HasItem: true,
		}))
		remaining++
	}
	stream.Close()

	eventbus.Publish(state.context, events.StreamFinish{
		Label:     label,
		Path:      pathToAny(path),
		TraceHint: hint,
		Items:     remaining,
		Duration:  time.Since(start),
	})

	return initial, stream
}

func (ex *incrementalExec) completeValueIncremental(fieldType *schema.TypeRef, fields []*language.Field, result any, path incremental.Path, current *incremental.DeferUsage, parentDeferUsages incremental.DeferUsageSet) (any, []incremental.IncrementalDataRecord) {
	state := ex.state

	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(toExecPath(path)) {
				state.errors = append(state.errors, GraphQLError{Message: fmt.Sprintf("Cannot return null for non-nullable field %s", path.String()), Path: toExecPath(path)})
			}
			return nil, nil
		}
		inner := schema.Unwrap(fieldType)
		completed, records := ex.completeValueIncremental(inner, fields, result, path, current, parentDeferUsages)
		if isNullish(completed) {
			return nil, records
		}
		return completed, records
	}

	if isNullish(result) {
		return nil, nil
	}

	if schema.IsList(fieldType) {
		return ex.completeListValueIncremental(fieldType, fields, result, path, current, parentDeferUsages)
	}

	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.errors = append(state.errors, GraphQLError{Message: fmt.Sprintf("Unknown type: %s", namedType), Path: toExecPath(path)})
		return nil, nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.errors = append(state.errors, GraphQLError{Message: err.Error(), Path: toExecPath(path)})
			return nil, nil
		}
		return serialized, nil
	case schema.TypeKindObject:
		return ex.completeObjectValueIncremental(typeObj, fields, result, path, current, parentDeferUsages)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return ex.completeAbstractValueIncremental(namedType, fields, result, path, current, parentDeferUsages)
	default:
		state.errors = append(state.errors, GraphQLError{Message: fmt.Sprintf("Cannot complete value of unexpected type: %s", typeObj.Kind), Path: toExecPath(path)})
		return nil, nil
	}
}

func (ex *incrementalExec) completeListValueIncremental(listType *schema.TypeRef, fields []*language.Field, result any, path incremental.Path, current *incremental.DeferUsage, parentDeferUsages incremental.DeferUsageSet) (any, []incremental.IncrementalDataRecord) {
	items, ok := toAnySlice(result)
	if !ok {
		ex.state.errors = append(ex.state.errors, GraphQLError{Message: fmt.Sprintf("Expected list value, got %T", result), Path: toExecPath(path)})
		return nil, nil
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	var records []incremental.IncrementalDataRecord
	for i, item := range items {
		p := incremental.Append(path, i)
		v, subRecords := ex.completeValueIncremental(inner, fields, item, p, current, parentDeferUsages)
		if schema.IsNonNull(inner) && isNullish(v) {
			return nil, records
		}
		completed[i] = v
		records = append(records, subRecords...)
	}
	return completed, records
}

func (ex *incrementalExec) completeObjectValueIncremental(objectType *schema.Type, fields []*language.Field, result any, path incremental.Path, current *incremental.DeferUsage, parentDeferUsages incremental.DeferUsageSet) (any, []incremental.IncrementalDataRecord) {
	sub := mergeSelectionSets(fields)
	return ex.executeSelectionSetIncremental(objectType, sub, result, path, current, parentDeferUsages)
}

func (ex *incrementalExec) completeAbstractValueIncremental(abstractTypeName string, fields []*language.Field, result any, path incremental.Path, current *incremental.DeferUsage, parentDeferUsages incremental.DeferUsageSet) (any, []incremental.IncrementalDataRecord) {
	state := ex.state
	typeName, err := state.runtime.ResolveType(state.context, abstractTypeName, result)
	if err != nil {
		state.addError(err.Error(), toExecPath(path))
		return nil, nil
	}
	objectType := state.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", abstractTypeName, typeName), toExecPath(path))
		return nil, nil
	}
	return ex.completeObjectValueIncremental(objectType, fields, result, path, current, parentDeferUsages)
}
