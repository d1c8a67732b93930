// Package queue implements the scheduler's event queue: a binary heap of
// job records ordered by next-fire instant, FIFO tiebreak on ties. It is
// thread-unsafe by itself and must be protected by the scheduler lock,
// exactly like the teacher's own repository/DB access patterns are
// protected by the caller's transaction boundary rather than an internal
// lock.
package queue

import (
	"container/heap"

	"github.com/minisource/schedulerd/internal/sched/job"
)

// Queue is a min-heap of *job.Record ordered by NextFireAt, with FIFO
// tiebreak by insertion order.
type Queue struct {
	h       recordHeap
	byID    map[string]*job.Record
	nextSeq int64
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		byID: make(map[string]*job.Record),
	}
}

// Empty reports whether the queue holds no jobs.
func (q *Queue) Empty() bool { return len(q.h) == 0 }

// Count returns the number of jobs in the queue.
func (q *Queue) Count() int { return len(q.h) }

// EventsCountUnlocked is an alias of Count for callers that already hold
// the scheduler lock, matching spec.md's naming for the manager's
// read-without-relocking path.
func (q *Queue) EventsCountUnlocked() int { return q.Count() }

// Top returns the job with the earliest NextFireAt, or nil if empty.
func (q *Queue) Top() *job.Record {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// Insert adds rec to the queue, assigning it the next FIFO sequence
// number for tie-breaking. O(log n).
func (q *Queue) Insert(rec *job.Record) {
	rec.SetSeq(q.nextSeq)
	q.nextSeq++
	heap.Push(&q.h, rec)
	q.byID[rec.ID()] = rec
}

// RemoveTop removes and returns the current top, or nil if empty. O(log n).
func (q *Queue) RemoveTop() *job.Record {
	if len(q.h) == 0 {
		return nil
	}
	rec := heap.Pop(&q.h).(*job.Record)
	delete(q.byID, rec.ID())
	return rec
}

// RemoveByIdentity removes the job with the given id if present. O(n).
func (q *Queue) RemoveByIdentity(id job.Identity) *job.Record {
	rec, ok := q.byID[id.ID()]
	if !ok {
		return nil
	}
	heap.Remove(&q.h, rec.HeapIndex())
	delete(q.byID, rec.ID())
	return rec
}

// Lookup returns the job with the given id, if present, without removing it.
func (q *Queue) Lookup(id job.Identity) (*job.Record, bool) {
	rec, ok := q.byID[id.ID()]
	return rec, ok
}

// TopChanged re-heapifies after the top's NextFireAt was mutated in
// place (e.g. a recurrence advanced it). O(log n).
func (q *Queue) TopChanged() {
	if len(q.h) == 0 {
		return
	}
	heap.Fix(&q.h, q.h[0].HeapIndex())
}

// RecalculateAll recomputes the NextFireAt of every job that is overdue
// against a new `now` by re-running its schedule's next-instant
// calculation, then re-heapifies the whole queue. O(n log n). Used after resume and after
// large wall-clock jumps.
func (q *Queue) RecalculateAll(now int64) {
	for _, rec := range q.h {
		if rec.NextFireAt < now {
			rec.AdvanceSchedule(now)
		}
	}
	heap.Init(&q.h)
}

// recordHeap implements container/heap.Interface over job records,
// ordered by NextFireAt with FIFO tiebreak — the same shape as the
// Nomad periodic dispatcher's periodicHeap (job + next-instant pairs
// compared with a secondary tiebreak).
type recordHeap []*job.Record

func (h recordHeap) Len() int { return len(h) }

func (h recordHeap) Less(i, j int) bool {
	if h[i].NextFireAt != h[j].NextFireAt {
		return h[i].NextFireAt < h[j].NextFireAt
	}
	return h[i].Seq() < h[j].Seq()
}

func (h recordHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].SetHeapIndex(i)
	h[j].SetHeapIndex(j)
}

func (h *recordHeap) Push(x interface{}) {
	rec := x.(*job.Record)
	rec.SetHeapIndex(len(*h))
	*h = append(*h, rec)
}

func (h *recordHeap) Pop() interface{} {
	old := *h
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.SetHeapIndex(-1)
	*h = old[:n-1]
	return rec
}
