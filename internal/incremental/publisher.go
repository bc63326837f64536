package incremental

import (
	"context"
	"sync"
)

// Subsequent is the async sequence of SubsequentResults following an
// InitialResult. Next must not be called concurrently with itself; Return
// and Throw are safe to call at any time, including concurrently with an
// in-flight Next (they race it to graph.Abort, and Next simply observes
// Done afterward).
type Subsequent interface {
	// Next returns the next message. ok is false once the sequence is
	// exhausted; Next never blocks forever on an aborted sequence; per the
	// Open Question resolution, an already-aborted sequence's Next returns
	// (nil, false, nil) rather than an error.
	Next(ctx context.Context) (*SubsequentResult, bool, error)
	// Return ends the sequence early (client disconnect): aborts the graph
	// and best-effort-cleans up every outstanding stream. Idempotent.
	Return(ctx context.Context) error
	// Throw behaves like Return but also propagates err to the caller,
	// mirroring a generator's throw().
	Throw(ctx context.Context, err error) error
}

// Publisher turns executor output into the initial/subsequent split defined
// by spec §6, backed by a Graph.
type Publisher struct {
	graph *Graph
}

// NewPublisher returns a publisher over a fresh Graph.
func NewPublisher() *Publisher {
	return &Publisher{graph: NewGraph()}
}

// BuildResponse ingests the synchronous execution's output (root data,
// root-level errors, and any IncrementalDataRecords discovered during that
// execution) and returns the initial payload plus, when there is
// outstanding incremental work, a Subsequent to drain.
func (p *Publisher) BuildResponse(data map[string]any, errors []error, records []IncrementalDataRecord) (*InitialResult, Subsequent) {
	sub := &subsequentImpl{graph: p.graph, cancellable: make(map[*StreamRecord]struct{})}

	newRoots := p.graph.GetNewRootNodes(records)
	sub.trackCancellable(newRoots)

	pending := toPendingResults(newRoots)
	init := &InitialResult{
		Data:    data,
		Errors:  toPayloadErrors(errors),
		Pending: pending,
		HasNext: len(pending) > 0,
	}
	if len(pending) == 0 {
		return init, nil
	}
	return init, sub
}

type subsequentImpl struct {
	mu          sync.Mutex
	graph       *Graph
	done        bool
	cancellable map[*StreamRecord]struct{}
}

func (s *subsequentImpl) trackCancellable(groups []DeliveryGroup) {
	for _, g := range groups {
		if st, ok := g.(*StreamRecord); ok {
			s.cancellable[st] = struct{}{}
		}
	}
}

func (s *subsequentImpl) forgetCancellable(st *StreamRecord) {
	delete(s.cancellable, st)
}

// resultAccumulator collects one SubsequentResult's worth of dispatched
// IncrementalDataRecordResults.
type resultAccumulator struct {
	pending     []PendingResult
	incremental []IncrementalResult
	completed   []CompletedResult
}

func (a *resultAccumulator) nonEmpty() bool {
	return len(a.pending) > 0 || len(a.incremental) > 0 || len(a.completed) > 0
}

func (a *resultAccumulator) toResult(hasNext bool) *SubsequentResult {
	return &SubsequentResult{
		Pending:     a.pending,
		Incremental: a.incremental,
		Completed:   a.completed,
		HasNext:     hasNext,
	}
}

// Next implements spec §4.3's next() algorithm: drain the current batch
// into an accumulator; if anything landed, emit it (tagged with whether the
// graph still has outstanding root work); otherwise await the next batch
// and loop.
func (s *subsequentImpl) Next(ctx context.Context) (*SubsequentResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, false, nil
	}

	batch := s.graph.CurrentCompletedBatch()
	for {
		acc := &resultAccumulator{}
		for _, r := range batch {
			s.dispatch(r, acc)
		}
		if acc.nonEmpty() {
			hasNext := s.graph.HasNext()
			if !hasNext {
				s.done = true
			}
			return acc.toResult(hasNext), true, nil
		}

		s.mu.Unlock()
		var nb nextBatchResult
		select {
		case nb = <-s.graph.NextCompletedBatch():
		case <-ctx.Done():
			s.mu.Lock()
			return nil, false, ctx.Err()
		}
		s.mu.Lock()
		if nb.Done || s.done {
			s.done = true
			return nil, false, nil
		}
		batch = nb.Batch
	}
}

func (s *subsequentImpl) dispatch(r *IncrementalDataRecordResult, acc *resultAccumulator) {
	switch {
	case r.ExecutionGroup != nil && r.ExecutionGroup.Failure != nil:
		s.dispatchFailure(r.ExecutionGroup.Failure, acc)
	case r.ExecutionGroup != nil && r.ExecutionGroup.Success != nil:
		s.dispatchSuccess(r.ExecutionGroup.Success, acc)
	case r.StreamItems != nil:
		s.dispatchStream(r.StreamItems, acc)
	}
}

func (s *subsequentImpl) dispatchFailure(f *CompletedExecutionGroupFailure, acc *resultAccumulator) {
	for _, frag := range f.PendingExecutionGroup.DeferredFragmentRecords {
		if s.graph.RemoveDeferredFragment(frag) {
			acc.completed = append(acc.completed, CompletedResult{ID: frag.ID(), Errors: toPayloadErrors(f.Errors)})
		}
	}
}

func (s *subsequentImpl) dispatchSuccess(success *CompletedExecutionGroupSuccess, acc *resultAccumulator) {
	s.graph.AddCompletedSuccessfulExecutionGroup(success)

	for _, frag := range success.PendingExecutionGroup.DeferredFragmentRecords {
		result, ok := s.graph.CompleteDeferredFragment(frag)
		if !ok {
			continue
		}
		s.trackCancellable(result.NewRootNodes)
		acc.pending = append(acc.pending, toPendingResults(result.NewRootNodes)...)
		for _, grpSuccess := range result.SuccessfulExecutionGroups {
			id, subPath := bestIDForGroup(grpSuccess, frag)
			acc.incremental = append(acc.incremental, IncrementalResult{
				ID:      id,
				SubPath: pathToAny(subPath),
				Data:    grpSuccess.Data,
			})
		}
		acc.completed = append(acc.completed, CompletedResult{ID: frag.ID()})
	}
}

// bestIDForGroup implements the best-id/sub-path rule from spec §4.3: a
// completed execution group may be released through more than one of its
// fragments at once. The id chosen is the one belonging to whichever
// released fragment has the longest path (the most specific one), and the
// delivered sub-path is relative to it.
func bestIDForGroup(success *CompletedExecutionGroupSuccess, initial *DeferredFragmentRecord) (string, Path) {
	bestID := initial.ID()
	bestLen := len(initial.Path)
	for _, f := range success.PendingExecutionGroup.DeferredFragmentRecords {
		if f.ID() == "" {
			continue
		}
		if len(f.Path) > bestLen {
			bestLen = len(f.Path)
			bestID = f.ID()
		}
	}
	return bestID, success.Path[bestLen:]
}

func (s *subsequentImpl) dispatchStream(si *StreamItemsResult, acc *resultAccumulator) {
	stream := si.StreamRecord
	switch {
	case !si.HasResult:
		acc.completed = append(acc.completed, CompletedResult{ID: stream.ID(), Errors: toPayloadErrors(si.Errors)})
		s.graph.RemoveStream(stream)
		if len(si.Errors) > 0 {
			if _, ok := s.cancellable[stream]; ok {
				s.forgetCancellable(stream)
				go func() { _ = stream.EarlyReturn() }()
			}
		} else {
			s.forgetCancellable(stream)
		}
	default:
		acc.incremental = append(acc.incremental, IncrementalResult{
			ID:     stream.ID(),
			Items:  si.Items,
			Errors: toPayloadErrors(si.Errors),
		})
		if len(si.IncrementalDataRecords) > 0 {
			newRoots := s.graph.GetNewRootNodes(si.IncrementalDataRecords)
			s.trackCancellable(newRoots)
			acc.pending = append(acc.pending, toPendingResults(newRoots)...)
		}
	}
}

func (s *subsequentImpl) Return(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.graph.Abort()
	s.earlyReturnAllLocked()
	return nil
}

func (s *subsequentImpl) Throw(ctx context.Context, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return err
	}
	s.done = true
	s.graph.Abort()
	s.earlyReturnAllLocked()
	return err
}

// earlyReturnAllLocked best-effort-invokes EarlyReturn on every stream still
// tracked as cancellable, waiting for all of them, per spec §4.4.
func (s *subsequentImpl) earlyReturnAllLocked() {
	streams := make([]*StreamRecord, 0, len(s.cancellable))
	for st := range s.cancellable {
		streams = append(streams, st)
	}
	s.cancellable = make(map[*StreamRecord]struct{})

	var wg sync.WaitGroup
	wg.Add(len(streams))
	for _, st := range streams {
		go func(st *StreamRecord) {
			defer wg.Done()
			_ = st.EarlyReturn()
		}(st)
	}
	wg.Wait()
}
