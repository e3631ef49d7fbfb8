package pending

import (
	"errors"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrInconsistent signals that the queue counted outstanding work while neither
// sub-queue produced an entry. It is a bookkeeping bug and must not be recovered.
var ErrInconsistent = errors.New("pending: queue reports work but no sub-queue yielded an entry")

// Entry is implemented by everything that can wait in a Queue.
type Entry interface {
	// Abandon is called exactly once for every entry still queued when the
	// queue is disposed, or when it is offered to an already disposed queue.
	Abandon(cause error)
}

// Queue is an unbounded, mutex protected FIFO of pending entries.
type Queue[E Entry] struct {
	mu       sync.Mutex
	seq      uint64
	size     int
	plain    *orderedmap.OrderedMap[uint64, E]
	values   *orderedmap.OrderedMap[uint64, E]
	disposed bool
}

func New[E Entry]() *Queue[E] {
	return &Queue[E]{
		plain:  orderedmap.New[uint64, E](),
		values: orderedmap.New[uint64, E](),
	}
}

// Enqueue appends a plain entry. It returns false when the queue was disposed,
// in which case the entry has not been retained.
func (q *Queue[E]) Enqueue(entry E) bool {
	return q.push(q.plain, entry)
}

// EnqueueValue appends an entry that carries its own request payload.
func (q *Queue[E]) EnqueueValue(entry E) bool {
	return q.push(q.values, entry)
}

func (q *Queue[E]) push(into *orderedmap.OrderedMap[uint64, E], entry E) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.disposed {
		return false
	}
	q.seq++
	into.Set(q.seq, entry)
	q.size++
	return true
}

// Dequeue pops the oldest entry across both sub-queues without blocking.
// ok is false when the queue is empty.
func (q *Queue[E]) Dequeue() (entry E, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return entry, false, nil
	}

	from := q.oldest()
	if from == nil {
		return entry, false, ErrInconsistent
	}

	pair := from.Oldest()
	from.Delete(pair.Key)
	q.size--
	return pair.Value, true, nil
}

// oldest picks the sub-queue whose head has the lowest sequence number.
func (q *Queue[E]) oldest() *orderedmap.OrderedMap[uint64, E] {
	p, v := q.plain.Oldest(), q.values.Oldest()
	switch {
	case p == nil && v == nil:
		return nil
	case p == nil:
		return q.values
	case v == nil:
		return q.plain
	case v.Key < p.Key:
		return q.values
	default:
		return q.plain
	}
}

// HasAny reports whether either sub-queue holds an entry.
func (q *Queue[E]) HasAny() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.plain.Len() > 0 || q.values.Len() > 0
}

func (q *Queue[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Disposed reports whether Dispose has been called.
func (q *Queue[E]) Disposed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disposed
}

// Dispose empties the queue and abandons every remaining entry in FIFO order
// with the given cause. Later calls return 0. Entries are abandoned outside the
// queue lock.
func (q *Queue[E]) Dispose(cause error) int {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return 0
	}
	q.disposed = true

	drained := make([]E, 0, q.size)
	for from := q.oldest(); from != nil; from = q.oldest() {
		pair := from.Oldest()
		from.Delete(pair.Key)
		drained = append(drained, pair.Value)
	}
	q.size = 0
	q.mu.Unlock()

	for _, entry := range drained {
		entry.Abandon(cause)
	}
	return len(drained)
}
