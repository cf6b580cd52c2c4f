package image

import "sync/atomic"

// QueueEntry is one streamed exposure/image pair (spec §4.C).
type QueueEntry struct {
	Exposure Exposure
	Image    *Image
	Sequence uint64
}

// Queue is a bounded FIFO with drop-oldest overflow policy (spec §4.C).  The
// dropped counter is read and written atomically, resolving the open
// question in spec §9 about its atomicity explicitly.
type Queue struct {
	maxLen  int
	entries []QueueEntry
	dropped atomic.Uint64
}

// NewQueue returns a Queue bounded to maxLen entries.
func NewQueue(maxLen int) *Queue {
	return &Queue{maxLen: maxLen}
}

// Push appends entry, dropping the oldest entry (and incrementing Dropped)
// if the queue is already at capacity.
func (q *Queue) Push(e QueueEntry) {
	if len(q.entries) >= q.maxLen {
		q.entries = q.entries[1:]
		q.dropped.Add(1)
	}
	q.entries = append(q.entries, e)
}

// Pop removes and returns the oldest entry, if any.
func (q *Queue) Pop() (QueueEntry, bool) {
	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// Len returns the current number of queued entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Dropped returns the number of entries dropped for overflow so far.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
