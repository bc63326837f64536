package incremental

// DeliveryGroup is the tagged union of the things that receive a client-
// visible id and appear in a "pending" list: a deferred fragment or a
// stream. *DeferredFragmentRecord and *StreamRecord both implement it.
type DeliveryGroup interface {
	groupPath() Path
	groupLabel() string
	groupID() string
	setGroupID(id string)
}

// IncrementalDataRecord is producer-side work handed from the executor to
// the graph: either a pending execution group (a deferred fragment's work)
// or a stream record (an active @stream list).
type IncrementalDataRecord interface {
	isIncrementalDataRecord()
}

// DeferredFragmentRecord represents one deferred fragment's lifecycle: from
// attachment into the forest, through promotion to root, to completion or
// error.
type DeferredFragmentRecord struct {
	Path   Path
	Label  string
	Parent *DeferredFragmentRecord

	id string

	// PendingExecutionGroups is the set of groups still outstanding for
	// this fragment. The fragment is complete when this set is empty.
	PendingExecutionGroups map[*PendingExecutionGroup]struct{}
	// SuccessfulExecutionGroups holds completed-successful groups not yet
	// delivered to the consumer, keyed by the originating group.
	SuccessfulExecutionGroups map[*PendingExecutionGroup]*CompletedExecutionGroupSuccess
	// Children are DeliveryGroups that must not be exposed until this
	// fragment completes.
	Children map[DeliveryGroup]struct{}

	attached bool
}

// NewDeferredFragmentRecord creates a new fragment record for a `@defer`
// occurrence. The caller (the field executor) is responsible for wiring
// parent to the enclosing DeferredFragmentRecord, if any.
func NewDeferredFragmentRecord(path Path, label string, parent *DeferredFragmentRecord) *DeferredFragmentRecord {
	return &DeferredFragmentRecord{
		Path:                      path,
		Label:                     label,
		Parent:                    parent,
		PendingExecutionGroups:    make(map[*PendingExecutionGroup]struct{}),
		SuccessfulExecutionGroups: make(map[*PendingExecutionGroup]*CompletedExecutionGroupSuccess),
		Children:                  make(map[DeliveryGroup]struct{}),
	}
}

func (d *DeferredFragmentRecord) groupPath() Path       { return d.Path }
func (d *DeferredFragmentRecord) groupLabel() string    { return d.Label }
func (d *DeferredFragmentRecord) groupID() string       { return d.id }
func (d *DeferredFragmentRecord) setGroupID(id string)  { d.id = id }

// ID returns the fragment's assigned id, or "" if not yet promoted to root.
func (d *DeferredFragmentRecord) ID() string { return d.id }

// Pending reports whether the fragment still has outstanding execution
// groups.
func (d *DeferredFragmentRecord) Pending() bool { return len(d.PendingExecutionGroups) > 0 }

// PendingExecutionGroup is a unit of executor work whose result will
// eventually materialise. A group may belong to more than one fragment when
// defer scopes overlap.
type PendingExecutionGroup struct {
	DeferredFragmentRecords []*DeferredFragmentRecord
	Result                  *Lazy[*CompletedExecutionGroupResult]
}

func (*PendingExecutionGroup) isIncrementalDataRecord() {}

// CompletedExecutionGroupResult is the tagged union of a pending execution
// group's outcome: exactly one of Success or Failure is set.
type CompletedExecutionGroupResult struct {
	Success *CompletedExecutionGroupSuccess
	Failure *CompletedExecutionGroupFailure
}

// CompletedExecutionGroupSuccess carries data for a successfully completed
// execution group.
type CompletedExecutionGroupSuccess struct {
	PendingExecutionGroup  *PendingExecutionGroup
	Path                   Path
	Data                   map[string]any
	IncrementalDataRecords []IncrementalDataRecord
}

// CompletedExecutionGroupFailure carries errors for a failed execution
// group.
type CompletedExecutionGroupFailure struct {
	PendingExecutionGroup *PendingExecutionGroup
	Path                  Path
	Errors                []error
}

// StreamItemResult is the value of one entry in a stream's lazy item queue.
type StreamItemResult struct {
	// Item is set for a regular element; HasItem distinguishes a present
	// (possibly nil) item from end-of-stream.
	Item    any
	HasItem bool
	// Errors is set for an abnormal end (HasItem false, len(Errors) > 0)
	// or for an item-level error accompanying a present item.
	Errors                 []error
	IncrementalDataRecords []IncrementalDataRecord
}

// StreamItemsResult is what the graph enqueues for the publisher: either a
// batch of items, an abnormal end, or a normal end, depending on which
// fields are set.
type StreamItemsResult struct {
	StreamRecord           *StreamRecord
	Items                  []any
	Errors                 []error
	HasResult              bool // false => normal end
	IncrementalDataRecords []IncrementalDataRecord
}

// StreamRecord represents an active @stream list.
type StreamRecord struct {
	Path  Path
	Label string

	id string

	earlyReturn func() error

	mu     mutexQueue
}

// NewStreamRecord creates a new stream record for an `@stream` occurrence.
// earlyReturn, if non-nil, is invoked when the consumer disconnects or the
// operation is aborted while the stream is still active (e.g. to close an
// upstream async iterator).
func NewStreamRecord(path Path, label string, earlyReturn func() error) *StreamRecord {
	sr := &StreamRecord{Path: path, Label: label, earlyReturn: earlyReturn}
	sr.mu.init()
	return sr
}

func (*StreamRecord) isIncrementalDataRecord() {}

func (s *StreamRecord) groupPath() Path      { return s.Path }
func (s *StreamRecord) groupLabel() string   { return s.Label }
func (s *StreamRecord) groupID() string      { return s.id }
func (s *StreamRecord) setGroupID(id string) { s.id = id }

// ID returns the stream's assigned id, or "" if not yet promoted to root.
func (s *StreamRecord) ID() string { return s.id }

// Push enqueues the next lazy item for the stream. Safe for the producer to
// call from any goroutine, including after the draining loop has started.
func (s *StreamRecord) Push(item *Lazy[StreamItemResult]) { s.mu.push(item) }

// Close marks the stream as having no further items after those already
// pushed. Idempotent.
func (s *StreamRecord) Close() { s.mu.closeQueue() }

// EarlyReturn best-effort-invokes the upstream cleanup closure, if any, and
// unblocks this stream's drain loop so it doesn't park forever waiting on
// items that will never come.
func (s *StreamRecord) EarlyReturn() error {
	defer s.mu.stop()
	if s.earlyReturn == nil {
		return nil
	}
	return s.earlyReturn()
}

// IncrementalDataRecordResult is one drained entry from the graph's
// completed queue: either an execution group's outcome, or a stream's
// batch/end.
type IncrementalDataRecordResult struct {
	ExecutionGroup *CompletedExecutionGroupResult
	StreamItems    *StreamItemsResult
}
