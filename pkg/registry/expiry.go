package registry

import (
	"container/heap"
	"time"
)

type expiryEntry struct {
	id  string
	at  time.Time
	gen uint64
}

// expiryQueue is a min-heap of pending removals ordered by due time.
type expiryQueue []expiryEntry

func (q expiryQueue) Len() int { return len(q) }

func (q expiryQueue) Less(i, j int) bool { return q[i].at.Before(q[j].at) }

func (q expiryQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) { *q = append(*q, x.(expiryEntry)) }

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

func (q *expiryQueue) schedule(e expiryEntry) {
	heap.Push(q, e)
}

// popDue removes and returns every entry due at or before now.
func (q *expiryQueue) popDue(now time.Time) []expiryEntry {
	var due []expiryEntry
	for q.Len() > 0 && !(*q)[0].at.After(now) {
		due = append(due, heap.Pop(q).(expiryEntry))
	}
	return due
}
