package detour_navigator

import (
	"container/heap"
	"time"
)

// readyJobs orders eligible jobs by distance to the player, then distance
// to the origin, then insertion order.
type readyJobs []*Job

func (q readyJobs) Len() int { return len(q) }

func (q readyJobs) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.DistanceToPlayer != b.DistanceToPlayer {
		return a.DistanceToPlayer < b.DistanceToPlayer
	}
	if a.DistanceToOrigin != b.DistanceToOrigin {
		return a.DistanceToOrigin < b.DistanceToOrigin
	}
	return a.seq < b.seq
}

func (q readyJobs) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyJobs) Push(x any) { *q = append(*q, x.(*Job)) }

func (q *readyJobs) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}

// delayedJobs orders jobs held by the debounce by process time.
type delayedJobs []*Job

func (q delayedJobs) Len() int { return len(q) }

func (q delayedJobs) Less(i, j int) bool {
	if !q[i].ProcessTime.Equal(q[j].ProcessTime) {
		return q[i].ProcessTime.Before(q[j].ProcessTime)
	}
	return q[i].seq < q[j].seq
}

func (q delayedJobs) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *delayedJobs) Push(x any) { *q = append(*q, x.(*Job)) }

func (q *delayedJobs) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}

// JobQueue holds at most one job per agent and tile. Jobs whose process time
// is still in the future wait in a separate heap and move to the ready heap
// once it passes. Not safe for concurrent use.
type JobQueue struct {
	ready   readyJobs
	delayed delayedJobs
	pushed  map[tileKey]struct{}
	seq     uint64
}

func NewJobQueue() *JobQueue {
	return &JobQueue{pushed: make(map[tileKey]struct{})}
}

// Push adds the job unless a job for the same agent and tile is already
// queued.
func (q *JobQueue) Push(job *Job, now time.Time) bool {
	key := job.key()
	if _, ok := q.pushed[key]; ok {
		return false
	}
	q.pushed[key] = struct{}{}
	q.seq++
	job.seq = q.seq
	if job.ProcessTime.After(now) {
		heap.Push(&q.delayed, job)
	} else {
		heap.Push(&q.ready, job)
	}
	return true
}

func (q *JobQueue) promote(now time.Time) {
	for len(q.delayed) > 0 && !q.delayed[0].ProcessTime.After(now) {
		heap.Push(&q.ready, heap.Pop(&q.delayed))
	}
}

// hasEligible reports whether Pop would return a job.
func (q *JobQueue) hasEligible(now time.Time) bool {
	q.promote(now)
	return len(q.ready) > 0
}

// Pop removes the best eligible job, or returns nil when every queued job is
// still held.
func (q *JobQueue) Pop(now time.Time) *Job {
	q.promote(now)
	if len(q.ready) == 0 {
		return nil
	}
	job := heap.Pop(&q.ready).(*Job)
	delete(q.pushed, job.key())
	return job
}

// NextProcessTime returns the earliest process time of a held job.
func (q *JobQueue) NextProcessTime() (time.Time, bool) {
	if len(q.delayed) == 0 {
		return time.Time{}, false
	}
	return q.delayed[0].ProcessTime, true
}

func (q *JobQueue) contains(job *Job) bool {
	_, ok := q.pushed[job.key()]
	return ok
}

func (q *JobQueue) Len() int {
	return len(q.ready) + len(q.delayed)
}

func (q *JobQueue) Clear() {
	q.ready = nil
	q.delayed = nil
	clear(q.pushed)
}
