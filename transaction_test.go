package parley

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction(t *testing.T) {
	t.Run("queues until an action is registered", func(t *testing.T) {
		tx := MustNewTransaction(WithName("tx"))
		defer tx.Dispose()

		var (
			done    atomic.Int64
			actions atomic.Int64
		)
		tx.Submit(func() { done.Add(1) })
		tx.Submit(func() { done.Add(1) })
		f := tx.SubmitAsync(context.Background())

		assert.Equal(t, 3, tx.Pending())
		assert.Equal(t, Unbound, tx.State())
		assert.Equal(t, "tx", tx.Name())

		require.NoError(t, tx.Register(SyncAction(func() error {
			actions.Add(1)
			return nil
		})))

		_, err := f.Get()
		require.NoError(t, err)
		assert.Equal(t, int64(2), done.Load())
		assert.Equal(t, int64(3), actions.Load())
		assert.Equal(t, Bound, tx.State())
	})

	t.Run("failed action rejects the future", func(t *testing.T) {
		tx := MustNewTransaction()
		defer tx.Dispose()

		boom := errors.New("boom")
		require.NoError(t, tx.Register(AsyncAction(func() error { return boom })))

		_, err := tx.SubmitAsync(context.Background()).Get()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancellable action sees the request context", func(t *testing.T) {
		tx := MustNewTransaction()
		defer tx.Dispose()

		require.NoError(t, tx.Register(CancellableAction(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := tx.SubmitAsync(ctx).Get()
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		require.NoError(t, tx.Broker().Wait(context.Background()))
	})

	t.Run("observers", func(t *testing.T) {
		tx := MustNewTransaction()
		defer tx.Dispose()

		var requests, responses atomic.Int64
		_, err := tx.SubscribeRequest(func(context.Context) { requests.Add(1) })
		require.NoError(t, err)
		_, err = tx.SubscribeResponse(func(context.Context) { responses.Add(1) })
		require.NoError(t, err)

		tx.Submit(nil)
		assert.Equal(t, int64(1), requests.Load())
		assert.Zero(t, responses.Load())

		require.NoError(t, tx.Register(SyncAction(func() error { return nil })))
		assert.Equal(t, int64(1), responses.Load())
	})

	t.Run("unregister keeps requests queued", func(t *testing.T) {
		tx := MustNewTransaction()
		defer tx.Dispose()

		require.NoError(t, tx.Register(SyncAction(func() error { return nil })))
		tx.Unregister()

		f := tx.SubmitAsync(context.Background())
		assert.Equal(t, 1, tx.Pending())

		require.NoError(t, tx.Register(SyncAction(func() error { return nil })))
		_, err := f.Get()
		require.NoError(t, err)
	})

	t.Run("lifecycle", func(t *testing.T) {
		var ran atomic.Bool
		tx := MustNewTransaction(WithDefaultStrategy(SyncAction(func() error {
			ran.Store(true)
			return nil
		})))

		require.NoError(t, tx.Initialize(context.Background()))
		_, err := tx.SubmitAsync(context.Background()).Get()
		require.NoError(t, err)
		assert.True(t, ran.Load())

		require.NoError(t, tx.Shutdown(context.Background()))
		assert.Equal(t, Disposed, tx.State())

		_, err = tx.SubmitAsync(context.Background()).Get()
		assert.ErrorIs(t, err, ErrDisposed)
	})

	t.Run("nil actions cannot be registered", func(t *testing.T) {
		tx := MustNewTransaction()
		defer tx.Dispose()

		assert.ErrorIs(t, tx.Register(SyncAction(nil)), ErrNilStrategy)
		assert.ErrorIs(t, tx.Register(AsyncAction(nil)), ErrNilStrategy)
		assert.ErrorIs(t, tx.Register(CancellableAction(nil)), ErrNilStrategy)
	})
}
