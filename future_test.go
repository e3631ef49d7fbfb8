package parley

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromise(t *testing.T) {
	t.Run("first resolution wins", func(t *testing.T) {
		p := NewPromise[int]()
		assert.Equal(t, Pending, p.State())

		assert.True(t, p.Fulfill(1))
		assert.False(t, p.Fulfill(2))
		assert.False(t, p.Reject(errors.New("late")))
		assert.False(t, p.Cancel(nil))

		v, err := p.Get()
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		assert.Equal(t, Fulfilled, p.State())
	})

	t.Run("reject with nil error", func(t *testing.T) {
		p := NewPromise[string]()
		require.True(t, p.Reject(nil))
		_, err := p.Get()
		assert.ErrorIs(t, err, ErrRejected)
		assert.Equal(t, Rejected, p.State())
	})

	t.Run("cancel wraps the cause", func(t *testing.T) {
		p := NewPromise[string]()
		require.True(t, p.Cancel(ErrDisposed))
		v, err := p.Get()
		assert.Empty(t, v)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, ErrDisposed)
		assert.Equal(t, Cancelled, p.State())
	})

	t.Run("cancel does not double wrap", func(t *testing.T) {
		p := NewPromise[int]()
		p.Cancel(cancellation(context.Canceled))
		_, err := p.Get()
		assert.Equal(t, "parley: request cancelled: context canceled", err.Error())
	})

	t.Run("await stops on context without resolving", func(t *testing.T) {
		p := NewPromise[int]()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := p.Await(ctx)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, Pending, p.State())

		p.Fulfill(3)
		v, err := p.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("done channel closes once", func(t *testing.T) {
		p := NewPromise[int]()
		select {
		case <-p.Done():
			t.Fatal("done before resolution")
		default:
		}
		p.Fulfill(1)
		<-p.Done()
		<-p.Done()
	})

	t.Run("concurrent resolution has one winner", func(t *testing.T) {
		p := NewPromise[int]()
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if p.Fulfill(i) {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestResolvedFutures(t *testing.T) {
	v, err := Resolved("ok").Get()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	boom := errors.New("boom")
	_, err = Failed[int](boom).Get()
	assert.ErrorIs(t, err, boom)

	f := Aborted[int](context.Canceled)
	_, err = f.Get()
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cancelled, f.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "fulfilled", Fulfilled.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "state(9)", State(9).String())
}
