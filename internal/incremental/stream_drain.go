package incremental

import "runtime"

// drainStream is the cooperative per-stream draining task (spec §4.2
// _on_stream_items). It runs on its own goroutine from the moment the
// stream is promoted to root until the stream ends or is stopped.
//
// While the queue has entries it pops and evaluates the next lazy item. A
// synchronously-ready item is buffered; a not-yet-ready one first flushes
// whatever is already buffered (so the client sees steady progress), then
// blocks on the future and yields one cooperative tick — spec §9 notes
// this is a batching knob, not a correctness requirement. A terminal value
// (no item) flushes the buffer and enqueues the terminal result.
func (g *Graph) drainStream(stream *StreamRecord) {
	var buffered []any
	var bufErrs []error
	var bufRecords []IncrementalDataRecord

	flush := func() {
		if len(buffered) == 0 && len(bufErrs) == 0 {
			return
		}
		items, errs, records := buffered, bufErrs, bufRecords
		buffered, bufErrs, bufRecords = nil, nil, nil
		g.mu.Lock()
		g.enqueueLocked(&IncrementalDataRecordResult{StreamItems: &StreamItemsResult{
			StreamRecord:           stream,
			Items:                  items,
			Errors:                 errs,
			HasResult:              true,
			IncrementalDataRecords: records,
		}})
		g.mu.Unlock()
	}

	enqueueTerminal := func(errs []error) {
		g.mu.Lock()
		g.enqueueLocked(&IncrementalDataRecordResult{StreamItems: &StreamItemsResult{
			StreamRecord: stream,
			Errors:       errs,
			HasResult:    false,
		}})
		g.mu.Unlock()
	}

	for {
		lazyItem, ok, naturalEnd := stream.mu.pop()
		if !ok {
			if naturalEnd {
				flush()
				enqueueTerminal(nil)
			}
			return
		}

		value, ch, ready := lazyItem.Evaluate()
		if !ready {
			flush()
			value = <-ch
			runtime.Gosched()
		}

		if !value.HasItem {
			flush()
			enqueueTerminal(value.Errors)
			return
		}

		buffered = append(buffered, value.Item)
		bufErrs = append(bufErrs, value.Errors...)
		bufRecords = append(bufRecords, value.IncrementalDataRecords...)
	}
}
