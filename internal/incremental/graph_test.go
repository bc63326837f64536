package incremental

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_SyncExecutionGroup_PromotesAndDeliversImmediately(t *testing.T) {
	f := NewDeferredFragmentRecord(Path{"slow"}, "slow", nil)
	group := &PendingExecutionGroup{DeferredFragmentRecords: []*DeferredFragmentRecord{f}}
	group.Result = Ready(&CompletedExecutionGroupResult{Success: &CompletedExecutionGroupSuccess{
		PendingExecutionGroup: group,
		Path:                  Path{"slow"},
		Data:                  map[string]any{"x": 1},
	}})

	g := NewGraph()
	roots := g.GetNewRootNodes([]IncrementalDataRecord{group})
	require.Len(t, roots, 1)
	frag, ok := roots[0].(*DeferredFragmentRecord)
	require.True(t, ok)
	assert.Same(t, f, frag)
	assert.NotEmpty(t, frag.ID())

	batch := g.CurrentCompletedBatch()
	require.Len(t, batch, 1)
	require.NotNil(t, batch[0].ExecutionGroup)
	require.NotNil(t, batch[0].ExecutionGroup.Success)
	assert.Equal(t, map[string]any{"x": 1}, batch[0].ExecutionGroup.Success.Data)
}

func TestGraph_AsyncExecutionGroup_DeliversOnceChannelResolves(t *testing.T) {
	f := NewDeferredFragmentRecord(Path{"slow"}, "slow", nil)
	group := &PendingExecutionGroup{DeferredFragmentRecords: []*DeferredFragmentRecord{f}}
	resultCh := make(chan *CompletedExecutionGroupResult, 1)
	group.Result = Thunk(func() (*CompletedExecutionGroupResult, <-chan *CompletedExecutionGroupResult) {
		return nil, resultCh
	})

	g := NewGraph()
	roots := g.GetNewRootNodes([]IncrementalDataRecord{group})
	require.Len(t, roots, 1)

	assert.Empty(t, g.CurrentCompletedBatch())

	waitCh := g.NextCompletedBatch()
	resultCh <- &CompletedExecutionGroupResult{Success: &CompletedExecutionGroupSuccess{
		PendingExecutionGroup: group,
		Path:                  Path{"slow"},
		Data:                  map[string]any{"x": 2},
	}}

	select {
	case nb := <-waitCh:
		require.False(t, nb.Done)
		require.Len(t, nb.Batch, 1)
		assert.Equal(t, map[string]any{"x": 2}, nb.Batch[0].ExecutionGroup.Success.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async execution group")
	}
}

func TestGraph_CompleteDeferredFragment_RemovesFromRoot(t *testing.T) {
	f := NewDeferredFragmentRecord(Path{"slow"}, "slow", nil)
	group := &PendingExecutionGroup{DeferredFragmentRecords: []*DeferredFragmentRecord{f}}
	success := &CompletedExecutionGroupSuccess{PendingExecutionGroup: group, Path: Path{"slow"}, Data: map[string]any{"x": 1}}
	group.Result = Ready(&CompletedExecutionGroupResult{Success: success})

	g := NewGraph()
	g.GetNewRootNodes([]IncrementalDataRecord{group})

	batch := g.CurrentCompletedBatch()
	require.Len(t, batch, 1)
	g.AddCompletedSuccessfulExecutionGroup(batch[0].ExecutionGroup.Success)

	result, ok := g.CompleteDeferredFragment(f)
	require.True(t, ok)
	assert.Empty(t, result.NewRootNodes)
	require.Len(t, result.SuccessfulExecutionGroups, 1)
	assert.False(t, g.HasNext())

	_, ok = g.CompleteDeferredFragment(f)
	assert.False(t, ok, "completing an already-removed fragment should report false")
}

func TestGraph_ReingestSameRecord_Deduplicates(t *testing.T) {
	f := NewDeferredFragmentRecord(Path{"slow"}, "slow", nil)
	group := &PendingExecutionGroup{DeferredFragmentRecords: []*DeferredFragmentRecord{f}}
	group.Result = Ready(&CompletedExecutionGroupResult{Success: &CompletedExecutionGroupSuccess{
		PendingExecutionGroup: group,
		Path:                  Path{"slow"},
		Data:                  map[string]any{},
	}})

	g := NewGraph()
	roots1 := g.GetNewRootNodes([]IncrementalDataRecord{group})
	roots2 := g.GetNewRootNodes([]IncrementalDataRecord{group})

	assert.Len(t, roots1, 1)
	assert.Empty(t, roots2, "re-ingesting the same record must be a silent no-op")
}

func TestGraph_Abort_ResolvesPendingAndFutureWaiters(t *testing.T) {
	g := NewGraph()
	waitCh := g.NextCompletedBatch()

	g.Abort()

	select {
	case nb := <-waitCh:
		assert.True(t, nb.Done)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for abort to resolve the waiter")
	}

	nb2 := <-g.NextCompletedBatch()
	assert.True(t, nb2.Done, "NextCompletedBatch after Abort must resolve Done immediately")
}

func TestGraph_Stream_BuffersThenFlushesOnTerminal(t *testing.T) {
	stream := NewStreamRecord(Path{"items"}, "", nil)
	stream.Push(Ready(StreamItemResult{Item: "a", HasItem: true}))
	stream.Push(Ready(StreamItemResult{Item: "b", HasItem: true}))
	stream.Push(Ready(StreamItemResult{HasItem: false}))

	g := NewGraph()
	roots := g.GetNewRootNodes([]IncrementalDataRecord{stream})
	require.Len(t, roots, 1)

	got := drainAll(t, g, 2)

	require.Len(t, got, 2)
	require.NotNil(t, got[0].StreamItems)
	assert.True(t, got[0].StreamItems.HasResult)
	assert.Equal(t, []any{"a", "b"}, got[0].StreamItems.Items)

	require.NotNil(t, got[1].StreamItems)
	assert.False(t, got[1].StreamItems.HasResult)
	assert.Empty(t, got[1].StreamItems.Errors)
}

func TestGraph_Stream_NaturalEndWithNoItems(t *testing.T) {
	stream := NewStreamRecord(Path{"items"}, "", nil)
	stream.Close()

	g := NewGraph()
	g.GetNewRootNodes([]IncrementalDataRecord{stream})

	got := drainAll(t, g, 1)

	require.Len(t, got, 1)
	require.NotNil(t, got[0].StreamItems)
	assert.False(t, got[0].StreamItems.HasResult)
	assert.Empty(t, got[0].StreamItems.Items)
}

// drainAll polls the graph until at least want results have been drained,
// or fails the test after a timeout.
func drainAll(t *testing.T, g *Graph, want int) []*IncrementalDataRecordResult {
	t.Helper()
	var got []*IncrementalDataRecordResult
	deadline := time.After(2 * time.Second)
	for len(got) < want {
		batch := g.CurrentCompletedBatch()
		if len(batch) == 0 {
			select {
			case nb := <-g.NextCompletedBatch():
				if nb.Done {
					t.Fatalf("graph finished with only %d of %d expected results", len(got), want)
				}
				batch = nb.Batch
			case <-deadline:
				t.Fatalf("timed out with only %d of %d expected results", len(got), want)
			}
		}
		got = append(got, batch...)
	}
	return got
}
