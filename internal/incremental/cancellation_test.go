package incremental

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Abort_FiresAllListeners(t *testing.T) {
	r := NewRegistry()
	var got1, got2 error
	r.Listen(func(reason error) { got1 = reason })
	r.Listen(func(reason error) { got2 = reason })

	boom := errors.New("boom")
	r.Abort(boom)

	assert.Equal(t, boom, got1)
	assert.Equal(t, boom, got2)
}

func TestRegistry_Abort_IsIdempotent(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Listen(func(error) { calls++ })

	r.Abort(errors.New("first"))
	r.Abort(errors.New("second"))

	assert.Equal(t, 1, calls)
}

func TestRegistry_Disconnect_PreventsFiring(t *testing.T) {
	r := NewRegistry()
	fired := false
	disconnect := r.Listen(func(error) { fired = true })
	disconnect()

	r.Abort(errors.New("boom"))

	assert.False(t, fired)
}

func TestRegistry_ListenAfterAbort_FiresImmediately(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Abort(boom)

	var got error
	r.Listen(func(reason error) { got = reason })

	assert.Equal(t, boom, got)
}

func TestCancellableFuture_ResolvesWithOriginalValue(t *testing.T) {
	r := NewRegistry()
	fut := make(chan Result[int], 1)
	fut <- Result[int]{Value: 5}

	res := <-CancellableFuture(r, fut)

	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.Value)
}

func TestCancellableFuture_RejectsWithAbortReason(t *testing.T) {
	r := NewRegistry()
	fut := make(chan Result[int])

	out := CancellableFuture(r, fut)
	boom := errors.New("boom")
	r.Abort(boom)

	res := <-out
	assert.Equal(t, boom, res.Err)
}

func TestCancellableSequence_Next_ProxiesUnderlyingSequence(t *testing.T) {
	stub := &stubSubsequent{result: &SubsequentResult{HasNext: true}, ok: true}
	seq := NewCancellableSequence(NewRegistry(), stub)

	result, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, stub.result, result)
}

func TestCancellableSequence_Next_RejectsOnAbort(t *testing.T) {
	stub := &stubSubsequent{block: make(chan struct{})}
	r := NewRegistry()
	seq := NewCancellableSequence(r, stub)

	done := make(chan struct{})
	var gotErr error
	go func() {
		_, _, gotErr = seq.Next(context.Background())
		close(done)
	}()

	boom := errors.New("boom")
	r.Abort(boom)

	select {
	case <-done:
		assert.Equal(t, boom, gotErr)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for abort to reject Next")
	}
	close(stub.block)
}

type stubSubsequent struct {
	result *SubsequentResult
	ok     bool
	block  chan struct{}
}

func (s *stubSubsequent) Next(ctx context.Context) (*SubsequentResult, bool, error) {
	if s.block != nil {
		<-s.block
	}
	return s.result, s.ok, nil
}

func (s *stubSubsequent) Return(ctx context.Context) error { return nil }

func (s *stubSubsequent) Throw(ctx context.Context, err error) error { return err }
