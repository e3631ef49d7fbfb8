package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeComponent struct {
	name        string
	journal     *journal
	initErr     error
	shutdownErr error
}

func (f *fakeComponent) Initialize(context.Context) error {
	f.journal.add("init:" + f.name)
	return f.initErr
}

func (f *fakeComponent) Shutdown(context.Context) error {
	f.journal.add("shutdown:" + f.name)
	return f.shutdownErr
}

func TestHostOrdering(t *testing.T) {
	ctx := context.Background()
	j := &journal{}
	h := New(ctx)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, h.Attach(ctx, name, &fakeComponent{name: name, journal: j}))
	}
	assert.Equal(t, 3, h.Len())

	require.NoError(t, h.Init(ctx))
	require.NoError(t, h.Init(ctx))
	require.NoError(t, h.Shutdown(ctx))
	require.NoError(t, h.Shutdown(ctx))

	assert.Equal(t, []string{
		"init:a", "init:b", "init:c",
		"shutdown:c", "shutdown:b", "shutdown:a",
	}, j.all())
}

func TestHostShutdownSignal(t *testing.T) {
	h := New(context.Background())
	select {
	case <-h.Context().Done():
		t.Fatal("signal fired before shutdown")
	default:
	}

	require.NoError(t, h.Shutdown(context.Background()))
	<-h.Context().Done()
	assert.ErrorIs(t, context.Cause(h.Context()), ErrShutdown)
}

func TestHostAttach(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects duplicates", func(t *testing.T) {
		h := New(ctx)
		j := &journal{}
		require.NoError(t, h.Attach(ctx, "a", &fakeComponent{name: "a", journal: j}))
		assert.ErrorIs(t, h.Attach(ctx, "a", &fakeComponent{name: "a", journal: j}), ErrDuplicate)
	})

	t.Run("rejects nil", func(t *testing.T) {
		h := New(ctx)
		assert.Error(t, h.Attach(ctx, "a", nil))
	})

	t.Run("initializes late components", func(t *testing.T) {
		h := New(ctx)
		j := &journal{}
		require.NoError(t, h.Init(ctx))
		require.NoError(t, h.Attach(ctx, "late", &fakeComponent{name: "late", journal: j}))
		assert.Equal(t, []string{"init:late"}, j.all())
	})

	t.Run("rejects after shutdown", func(t *testing.T) {
		h := New(ctx)
		require.NoError(t, h.Shutdown(ctx))
		assert.ErrorIs(t, h.Attach(ctx, "a", &fakeComponent{journal: &journal{}}), ErrShutdown)
		assert.ErrorIs(t, h.Init(ctx), ErrShutdown)
	})

	t.Run("detach skips shutdown", func(t *testing.T) {
		h := New(ctx)
		j := &journal{}
		require.NoError(t, h.Attach(ctx, "a", &fakeComponent{name: "a", journal: j}))
		c, ok := h.Detach("a")
		require.True(t, ok)
		assert.NotNil(t, c)
		_, ok = h.Get("a")
		assert.False(t, ok)

		require.NoError(t, h.Shutdown(ctx))
		assert.Empty(t, j.all())
	})
}

func TestHostJoinsErrors(t *testing.T) {
	ctx := context.Background()
	j := &journal{}
	h := New(ctx)
	errA, errB := errors.New("a failed"), errors.New("b failed")

	require.NoError(t, h.Attach(ctx, "a", &fakeComponent{name: "a", journal: j, initErr: errA, shutdownErr: errA}))
	require.NoError(t, h.Attach(ctx, "b", &fakeComponent{name: "b", journal: j, initErr: errB}))

	err := h.Init(ctx)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	err = h.Shutdown(ctx)
	assert.ErrorIs(t, err, errA)
	assert.NotErrorIs(t, err, errB)
	assert.Equal(t, []string{"init:a", "init:b", "shutdown:b", "shutdown:a"}, j.all())
}
