package incremental

import "sync"

// Graph is the in-memory bookkeeping for one operation's incremental
// delivery: the forest of deferred fragments, pending/completed execution
// groups, active streams, and the root set currently advertised to the
// consumer as "pending".
//
// Per spec §5, every method here is logically called from a single task
// (the publisher's). The one exception is the completed-queue/waiter
// handoff: a Lazy result can resolve on any goroutine (wherever the
// executor's async work runs), and that goroutine calls back into enqueue.
// Go has no cooperative scheduler, so a single mutex guards all state
// rather than only the handoff — see DESIGN.md for the grounding.
type Graph struct {
	mu sync.Mutex

	rootNodes map[DeliveryGroup]struct{}
	seen      map[IncrementalDataRecord]struct{} // dedup: re-ingested records are no-ops

	completedQueue []*IncrementalDataRecordResult
	waiters        []chan nextBatchResult

	nextID  uint64
	aborted bool
}

// nextBatchResult is what NextCompletedBatch's channel delivers: either a
// drained batch, or Done=true once the graph has nothing left to produce.
type nextBatchResult struct {
	Batch []*IncrementalDataRecordResult
	Done  bool
}

// NewGraph returns an empty graph ready to ingest IncrementalDataRecords.
func NewGraph() *Graph {
	return &Graph{
		rootNodes: make(map[DeliveryGroup]struct{}),
		seen:      make(map[IncrementalDataRecord]struct{}),
	}
}

// GetNewRootNodes ingests new work and attaches it to the fragment forest,
// returning the DeliveryGroups newly promoted to root (i.e. whose parent
// chain has already been released, or which have no parent).
func (g *Graph) GetNewRootNodes(records []IncrementalDataRecord) []DeliveryGroup {
	g.mu.Lock()
	defer g.mu.Unlock()

	working := make(map[DeliveryGroup]struct{})
	for _, rec := range records {
		if _, dup := g.seen[rec]; dup {
			continue // open question #2: dedup silently, see DESIGN.md
		}
		g.seen[rec] = struct{}{}
		g.ingestLocked(rec, working, nil)
	}
	return g.promoteNonEmptyToRootLocked(working)
}

// ingestLocked attaches one incoming record to the forest. parents, when
// non-nil, are the fragments a stream was attached under (nil means "no
// parent context": expose directly into the initial working set).
func (g *Graph) ingestLocked(rec IncrementalDataRecord, working map[DeliveryGroup]struct{}, parents []*DeferredFragmentRecord) {
	switch r := rec.(type) {
	case *PendingExecutionGroup:
		completesRoot := false
		for _, frag := range r.DeferredFragmentRecords {
			g.addDeferredFragmentLocked(frag, working)
			frag.PendingExecutionGroups[r] = struct{}{}
			if g.completesRootNodeLocked(frag) {
				completesRoot = true
			}
		}
		if completesRoot {
			g.onExecutionGroupLocked(r)
		}
	case *StreamRecord:
		if len(parents) == 0 {
			working[r] = struct{}{}
			return
		}
		for _, frag := range parents {
			frag.Children[r] = struct{}{}
		}
	}
}

// completesRootNodeLocked reports whether frag is already in the root set.
func (g *Graph) completesRootNodeLocked(frag *DeferredFragmentRecord) bool {
	_, ok := g.rootNodes[frag]
	return ok
}

// addDeferredFragmentLocked materialises frag into the forest: if frag is
// already in root set, nothing to do. Otherwise attach to its parent's
// children and recurse; once the chain reaches a nil parent, the topmost
// ancestor is added to working (the caller's promotion candidate set).
func (g *Graph) addDeferredFragmentLocked(frag *DeferredFragmentRecord, working map[DeliveryGroup]struct{}) {
	if g.completesRootNodeLocked(frag) {
		return
	}
	if frag.attached {
		return
	}
	frag.attached = true
	if frag.Parent == nil {
		working[frag] = struct{}{}
		return
	}
	frag.Parent.Children[frag] = struct{}{}
	g.addDeferredFragmentLocked(frag.Parent, working)
}

// promoteNonEmptyToRootLocked iterates the working set: streams are
// promoted directly (and start draining); fragments with pending groups
// are promoted and their in-flight groups kicked off; empty intermediate
// fragments (scope wrappers with no pending work of their own) are not
// promoted — their children are added to the working set instead.
func (g *Graph) promoteNonEmptyToRootLocked(working map[DeliveryGroup]struct{}) []DeliveryGroup {
	var promoted []DeliveryGroup
	for len(working) > 0 {
		next := make(map[DeliveryGroup]struct{})
		for node := range working {
			switch n := node.(type) {
			case *StreamRecord:
				g.promoteLocked(n)
				promoted = append(promoted, n)
				go g.drainStream(n)
			case *DeferredFragmentRecord:
				if n.Pending() {
					g.promoteLocked(n)
					promoted = append(promoted, n)
					for group := range n.PendingExecutionGroups {
						g.onExecutionGroupLocked(group)
					}
				} else {
					for child := range n.Children {
						next[child] = struct{}{}
					}
				}
			}
		}
		working = next
	}
	return promoted
}

func (g *Graph) promoteLocked(dg DeliveryGroup) {
	g.rootNodes[dg] = struct{}{}
	id := g.nextID
	g.nextID++
	dg.setGroupID(formatID(id))
}

// onExecutionGroupLocked evaluates a pending execution group's lazy result:
// synchronous results are enqueued immediately; async ones are wired so the
// future's completion calls back into enqueue from whatever goroutine
// resolves it.
func (g *Graph) onExecutionGroupLocked(group *PendingExecutionGroup) {
	value, ch, ready := group.Result.Evaluate()
	if ready {
		g.enqueueLocked(&IncrementalDataRecordResult{ExecutionGroup: value})
		return
	}
	go func() {
		v := <-ch
		g.mu.Lock()
		g.enqueueLocked(&IncrementalDataRecordResult{ExecutionGroup: v})
		g.mu.Unlock()
	}()
}

// AddCompletedSuccessfulExecutionGroup registers a successful group's
// completion: removes it from each referenced fragment's pending set and
// files the result under each fragment's successful set, then ingests any
// child records it carried.
func (g *Graph) AddCompletedSuccessfulExecutionGroup(success *CompletedExecutionGroupSuccess) {
	g.mu.Lock()
	defer g.mu.Unlock()

	group := success.PendingExecutionGroup
	for _, frag := range group.DeferredFragmentRecords {
		delete(frag.PendingExecutionGroups, group)
		frag.SuccessfulExecutionGroups[group] = success
	}
	if len(success.IncrementalDataRecords) == 0 {
		return
	}
	working := make(map[DeliveryGroup]struct{})
	for _, rec := range success.IncrementalDataRecords {
		if _, dup := g.seen[rec]; dup {
			continue
		}
		g.seen[rec] = struct{}{}
		g.ingestLocked(rec, working, group.DeferredFragmentRecords)
	}
	g.promoteNonEmptyToRootLocked(working)
}

// CurrentCompletedBatch drains and returns everything currently queued. If
// the queue is empty and the root set is empty, it also resolves any
// waiters parked on NextCompletedBatch with Done.
func (g *Graph) CurrentCompletedBatch() []*IncrementalDataRecordResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentCompletedBatchLocked()
}

func (g *Graph) currentCompletedBatchLocked() []*IncrementalDataRecordResult {
	batch := g.completedQueue
	g.completedQueue = nil
	if len(batch) == 0 && len(g.rootNodes) == 0 {
		g.resolveWaitersLocked(nextBatchResult{Done: true})
	}
	return batch
}

// NextCompletedBatch registers a waiter and returns a channel that receives
// exactly once: either the next drained batch, or Done if the graph has
// been aborted or drains dry with nothing left pending.
func (g *Graph) NextCompletedBatch() <-chan nextBatchResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan nextBatchResult, 1)
	if g.aborted {
		ch <- nextBatchResult{Done: true}
		return ch
	}
	g.waiters = append(g.waiters, ch)
	return ch
}

// enqueueLocked appends a result to the completed queue. If a waiter is
// parked, it is resolved immediately with the current batch (which, by
// construction, already contains the value just pushed).
func (g *Graph) enqueueLocked(result *IncrementalDataRecordResult) {
	g.completedQueue = append(g.completedQueue, result)
	if len(g.waiters) > 0 {
		batch := g.currentCompletedBatchLocked()
		g.resolveWaitersLocked(nextBatchResult{Batch: batch})
	}
}

func (g *Graph) resolveWaitersLocked(result nextBatchResult) {
	waiters := g.waiters
	g.waiters = nil
	for _, w := range waiters {
		w <- result
	}
}

// Abort resolves all waiters with Done immediately. Ingests and completions
// still function afterward, but nothing further is delivered to the
// consumer.
func (g *Graph) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aborted = true
	g.resolveWaitersLocked(nextBatchResult{Done: true})
}

// HasNext reports whether the root set is non-empty.
func (g *Graph) HasNext() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rootNodes) > 0
}

// CompleteDeferredFragmentResult is the outcome of CompleteDeferredFragment:
// newly promoted root nodes, and the successful execution groups that are
// now deliverable for this fragment.
type CompleteDeferredFragmentResult struct {
	NewRootNodes              []DeliveryGroup
	SuccessfulExecutionGroups []*CompletedExecutionGroupSuccess
}

// CompleteDeferredFragment removes fragment from the root set once its
// pending execution groups are empty. It detaches each of its successful
// groups from any other fragment's successful set (so they are not
// double-delivered), promotes non-empty children to root, and returns the
// resulting new root nodes plus the now-deliverable successful groups. The
// second return is false if the precondition (fragment in root set, no
// pending groups) does not hold.
func (g *Graph) CompleteDeferredFragment(fragment *DeferredFragmentRecord) (*CompleteDeferredFragmentResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, inRoot := g.rootNodes[fragment]; !inRoot {
		return nil, false
	}
	if fragment.Pending() {
		return nil, false
	}

	delete(g.rootNodes, fragment)

	successes := make([]*CompletedExecutionGroupSuccess, 0, len(fragment.SuccessfulExecutionGroups))
	for group, success := range fragment.SuccessfulExecutionGroups {
		successes = append(successes, success)
		for _, other := range group.DeferredFragmentRecords {
			if other == fragment {
				continue
			}
			delete(other.SuccessfulExecutionGroups, group)
		}
	}
	fragment.SuccessfulExecutionGroups = make(map[*PendingExecutionGroup]*CompletedExecutionGroupSuccess)

	working := make(map[DeliveryGroup]struct{})
	for child := range fragment.Children {
		working[child] = struct{}{}
	}
	newRoots := g.promoteNonEmptyToRootLocked(working)

	return &CompleteDeferredFragmentResult{NewRootNodes: newRoots, SuccessfulExecutionGroups: successes}, true
}

// RemoveDeferredFragment removes an errored fragment from the root set,
// reporting whether it was present.
func (g *Graph) RemoveDeferredFragment(fragment *DeferredFragmentRecord) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rootNodes[fragment]; !ok {
		return false
	}
	delete(g.rootNodes, fragment)
	return true
}

// RemoveStream removes a stream from the root set.
func (g *Graph) RemoveStream(stream *StreamRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rootNodes, stream)
}
