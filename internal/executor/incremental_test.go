package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/protograph/internal/eventbus"
	events "github.com/hanpama/protograph/internal/events"
	schema "github.com/hanpama/protograph/internal/schema"
)

func TestExecuteRequestIncremental_NoDirectives_NilSubsequent(t *testing.T) {
	sch := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query":  {Name: "Query", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(&schema.Field{Name: "a", Type: schema.NamedType("String")})},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockValueResolver("A")})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "{ a }")

	init, sub := exec.ExecuteRequestIncremental(context.Background(), doc, "", nil, nil)

	assert.Nil(t, sub)
	assert.False(t, init.HasNext)
	assert.Equal(t, map[string]any{"a": "A"}, init.Data)
}

func TestExecuteRequestIncremental_DeferredFragment_RoutesToSubsequent(t *testing.T) {
	sch := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query": {Name: "Query", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(
				&schema.Field{Name: "fast", Type: schema.NamedType("String")},
				&schema.Field{Name: "slow", Type: schema.NamedType("String")},
			)},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.fast": NewMockValueResolver("F"),
		"Query.slow": NewMockValueResolver("S"),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, `{
		fast
		... @defer(label: "slowLabel") { slow }
	}`)

	init, sub := exec.ExecuteRequestIncremental(context.Background(), doc, "", nil, nil)

	require.True(t, init.HasNext)
	require.Len(t, init.Pending, 1)
	assert.Equal(t, "slowLabel", init.Pending[0].Label)
	assert.Equal(t, map[string]any{"fast": "F"}, init.Data)
	require.NotNil(t, sub)

	result, ok, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, result.Incremental, 1)
	assert.Equal(t, init.Pending[0].ID, result.Incremental[0].ID)
	assert.Equal(t, map[string]any{"slow": "S"}, result.Incremental[0].Data)
	require.Len(t, result.Completed, 1)
	assert.False(t, result.HasNext)
}

func TestExecuteRequestIncremental_DeferWithIfFalse_ExecutesInline(t *testing.T) {
	sch := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query":  {Name: "Query", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(&schema.Field{Name: "a", Type: schema.NamedType("String")})},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}
	rt := NewMockRuntime(map[string]MockResolver{"Query.a": NewMockValueResolver("A")})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, `{ ... @defer(if: false) { a } }`)

	init, sub := exec.ExecuteRequestIncremental(context.Background(), doc, "", nil, nil)

	assert.Nil(t, sub)
	assert.False(t, init.HasNext)
	assert.Equal(t, map[string]any{"a": "A"}, init.Data)
}

func TestExecuteRequestIncremental_NestedDefer_InnerPendingArrivesWithOuterCompleted(t *testing.T) {
	sch := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query": {Name: "Query", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(
				&schema.Field{Name: "a", Type: schema.NamedType("String")},
				&schema.Field{Name: "b", Type: schema.NamedType("String")},
				&schema.Field{Name: "c", Type: schema.NamedType("String")},
			)},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
		"Query.c": NewMockValueResolver("C"),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, `{
		a
		... @defer(label: "outer") {
			b
			... @defer(label: "inner") { c }
		}
	}`)

	init, sub := exec.ExecuteRequestIncremental(context.Background(), doc, "", nil, nil)

	require.True(t, init.HasNext)
	require.Len(t, init.Pending, 1)
	assert.Equal(t, "outer", init.Pending[0].Label)
	outerID := init.Pending[0].ID
	require.NotNil(t, sub)

	// First message: outer's own fields complete, and the inner fragment
	// is announced as newly pending in the same message.
	result, ok, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, result.Pending, 1)
	assert.Equal(t, "inner", result.Pending[0].Label)
	innerID := result.Pending[0].ID
	require.Len(t, result.Incremental, 1)
	assert.Equal(t, outerID, result.Incremental[0].ID)
	assert.Equal(t, map[string]any{"b": "B"}, result.Incremental[0].Data)
	require.Len(t, result.Completed, 1)
	assert.Equal(t, outerID, result.Completed[0].ID)
	assert.True(t, result.HasNext)

	// Second message: inner's own field completes and the sequence ends.
	result2, ok2, err2 := sub.Next(context.Background())
	require.NoError(t, err2)
	require.True(t, ok2)
	require.Len(t, result2.Incremental, 1)
	assert.Equal(t, innerID, result2.Incremental[0].ID)
	assert.Equal(t, map[string]any{"c": "C"}, result2.Incremental[0].Data)
	require.Len(t, result2.Completed, 1)
	assert.Equal(t, innerID, result2.Completed[0].ID)
	assert.False(t, result2.HasNext)
}

func TestExecuteRequestIncremental_Panic_PublishesIncrementalPanicThenRepanics(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	var recovered any
	eventbus.Subscribe(func(ctx context.Context, e events.IncrementalPanic) {
		recovered = e.Recovered
	})

	sch := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query":  {Name: "Query", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(&schema.Field{Name: "a", Type: schema.NamedType("String")})},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": func(ctx context.Context, source any, args map[string]any) (any, error) {
			panic("boom")
		},
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, "{ a }")

	assert.PanicsWithValue(t, "boom", func() {
		exec.ExecuteRequestIncremental(context.Background(), doc, "", nil, nil)
	})
	assert.Equal(t, "boom", recovered, "the panic must be published as events.IncrementalPanic before being re-raised")
}

func TestExecuteRequestIncremental_StreamedList_DeliversRemainderThenCompletes(t *testing.T) {
	sch := &schema.Schema{
		QueryType: "Query",
		Types: map[string]*schema.Type{
			"Query":  {Name: "Query", Kind: schema.TypeKindObject, Fields: schema.NewFieldMap(&schema.Field{Name: "items", Type: schema.ListType(schema.NamedType("String"))})},
			"String": {Name: "String", Kind: schema.TypeKindScalar},
		},
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.items": NewMockValueResolver([]any{"a", "b", "c"}),
	})
	exec := NewExecutor(rt, sch)
	doc := mustParseQuery(t, `{ items @stream(initialCount: 1) }`)

	init, sub := exec.ExecuteRequestIncremental(context.Background(), doc, "", nil, nil)

	require.True(t, init.HasNext)
	require.Len(t, init.Pending, 1)
	data, ok := init.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a"}, data["items"])
	require.NotNil(t, sub)

	var items []any
	completed := false
	for !completed {
		result, ok, err := sub.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		for _, inc := range result.Incremental {
			items = append(items, inc.Items...)
		}
		if len(result.Completed) > 0 {
			completed = true
			assert.False(t, result.HasNext)
		}
	}
	assert.Equal(t, []any{"b", "c"}, items)
}
