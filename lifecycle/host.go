// Package lifecycle owns the creation and teardown of long-lived components.
//
// A Host replaces ambient global hooks with explicit calls: whatever owns the
// process creates a Host, attaches components to it, calls Init once the
// process is ready and Shutdown before it exits. Components are initialized in
// attach order and shut down in reverse order.
//
// The Host also owns the process-wide shutdown signal. Context() returns a
// context that is cancelled with ErrShutdown the moment Shutdown starts, which
// brokers combine with their per-request contexts so that nothing awaits a
// response through teardown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/parley/pkg/slogx"
	"github.com/fogfish/opts"
)

var (
	// ErrShutdown is the cancellation cause of Host.Context.
	ErrShutdown = errors.New("lifecycle: host shut down")
	// ErrDuplicate is returned when a name is attached twice.
	ErrDuplicate = errors.New("lifecycle: component already attached")
)

// Component is anything a Host can start and stop.
type Component interface {
	Initialize(context.Context) error
	Shutdown(context.Context) error
}

type Host struct {
	ctx        context.Context
	cancel     context.CancelCauseFunc
	components *haxmap.Map[string, Component]
	log        *slog.Logger

	mu          sync.Mutex
	order       []string
	initialized bool
	stopped     bool
}

// WithLogger sets the logger used for lifecycle transitions.
var WithLogger = opts.ForName[Host, *slog.Logger]("log")

// New creates a Host whose shutdown signal derives from parent.
func New(parent context.Context, options ...opts.Option[Host]) *Host {
	ctx, cancel := context.WithCancelCause(parent)
	h := &Host{
		ctx:        ctx,
		cancel:     cancel,
		components: haxmap.New[string, Component](),
		log:        slog.Default().With(slogx.LoggerName("lifecycle")),
	}
	if err := opts.Apply(h, options); err != nil {
		panic(err)
	}
	return h
}

// Context is the process-wide shutdown signal.
func (h *Host) Context() context.Context {
	return h.ctx
}

// Attach adds a named component. When the host is already initialized the
// component is initialized immediately.
func (h *Host) Attach(ctx context.Context, name string, c Component) error {
	if c == nil {
		return fmt.Errorf("lifecycle: component %q is nil", name)
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrShutdown
	}
	if _, exists := h.components.Get(name); exists {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	h.components.Set(name, c)
	h.order = append(h.order, name)
	initialized := h.initialized
	h.mu.Unlock()

	if initialized {
		return h.initialize(ctx, name, c)
	}
	return nil
}

// Detach removes a component without shutting it down.
func (h *Host) Detach(name string) (Component, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.components.Get(name)
	if ok {
		h.components.Del(name)
		h.order = slices.DeleteFunc(h.order, func(n string) bool { return n == name })
	}
	return c, ok
}

func (h *Host) Get(name string) (Component, bool) {
	return h.components.Get(name)
}

func (h *Host) Len() int {
	return int(h.components.Len())
}

// Init initializes every attached component in attach order. Failures do not
// stop the remaining components from being initialized; they are joined.
func (h *Host) Init(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrShutdown
	}
	if h.initialized {
		h.mu.Unlock()
		return nil
	}
	h.initialized = true
	names := slices.Clone(h.order)
	h.mu.Unlock()

	var err error
	for _, name := range names {
		if c, ok := h.components.Get(name); ok {
			err = errors.Join(err, h.initialize(ctx, name, c))
		}
	}
	return err
}

func (h *Host) initialize(ctx context.Context, name string, c Component) error {
	if err := c.Initialize(ctx); err != nil {
		h.log.ErrorContext(ctx, "component failed to initialize", slog.String("component", name), slogx.Error(err))
		return fmt.Errorf("initialize %s: %w", name, err)
	}
	h.log.DebugContext(ctx, "component initialized", slog.String("component", name))
	return nil
}

// Shutdown cancels the shutdown signal and shuts every component down in
// reverse attach order. Only the first call does any work.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	names := slices.Clone(h.order)
	h.mu.Unlock()

	h.cancel(ErrShutdown)

	var err error
	for _, name := range slices.Backward(names) {
		c, ok := h.components.Get(name)
		if !ok {
			continue
		}
		if serr := c.Shutdown(ctx); serr != nil {
			h.log.ErrorContext(ctx, "component failed to shut down", slog.String("component", name), slogx.Error(serr))
			err = errors.Join(err, fmt.Errorf("shutdown %s: %w", name, serr))
			continue
		}
		h.log.DebugContext(ctx, "component shut down", slog.String("component", name))
	}
	return err
}
