// Package pending holds requests that have been submitted to a broker but not
// yet answered.
//
// The queue keeps two sub-queues: one for entries that carry their own request
// payload and one for plain entries that rely on the broker's default request.
// Every entry is stamped with a monotonically increasing sequence number when it
// is enqueued, and Dequeue always returns the entry with the lowest number
// across both sub-queues, so ordering is strict FIFO by submission regardless of
// the sub-queue an entry landed in.
//
// Disposal drains the queue and hands every remaining entry to its Abandon
// method. What abandoning means is up to the entry: awaitable entries cancel
// their promise, callback entries are dropped.
package pending
