package metadata

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultWorkers is the load queue concurrency budget.
const DefaultWorkers = 4

// LoadFunc performs the extraction work for one task. It must re-validate
// that the track id still maps to the same path before and after the actual
// extraction, and silently discard stale results.
type LoadFunc func(trackID, path string)

type queuedTask struct {
	trackID string
	path    string
	high    bool
	done    chan struct{}
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// LoadQueue schedules metadata extraction with two priority lanes, strict
// high-before-normal dequeue, FIFO within a lane, a fixed concurrency budget
// and per-track deduplication.
type LoadQueue struct {
	mu       sync.Mutex
	loadFn   LoadFunc
	workers  int
	high     []*queuedTask
	normal   []*queuedTask
	inflight map[string]*queuedTask
	running  int
	closed   bool
	wg       sync.WaitGroup
}

// NewLoadQueue creates a queue running fn with the given concurrency budget.
// A non-positive budget means DefaultWorkers.
func NewLoadQueue(workers int, fn LoadFunc) *LoadQueue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &LoadQueue{
		loadFn:   fn,
		workers:  workers,
		inflight: make(map[string]*queuedTask),
	}
}

// Enqueue schedules an extraction for the track and returns a channel that
// closes once the task resolves. A second enqueue for a track id already
// queued or in flight returns that task's completion instead of creating a
// duplicate; a high-priority enqueue promotes an existing normal-lane task,
// preserving its identity. After Shutdown the returned channel is already
// closed and nothing runs.
func (q *LoadQueue) Enqueue(trackID, path string, highPriority bool) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return closedDone
	}

	if existing, ok := q.inflight[trackID]; ok {
		if highPriority && !existing.high {
			q.promoteLocked(existing)
		}
		return existing.done
	}

	task := &queuedTask{
		trackID: trackID,
		path:    path,
		high:    highPriority,
		done:    make(chan struct{}),
	}
	q.inflight[trackID] = task
	if highPriority {
		q.high = append(q.high, task)
	} else {
		q.normal = append(q.normal, task)
	}
	q.scheduleLocked()
	return task.done
}

// promoteLocked moves a queued normal-lane task into the high lane. A task
// already executing has no lane to move.
func (q *LoadQueue) promoteLocked(task *queuedTask) {
	for i, t := range q.normal {
		if t == task {
			q.normal = append(q.normal[:i], q.normal[i+1:]...)
			task.high = true
			q.high = append(q.high, task)
			log.Debug().Str("trackId", task.trackID).Msg("Metadata task promoted to high priority")
			return
		}
	}
}

func (q *LoadQueue) popLocked() *queuedTask {
	if len(q.high) > 0 {
		t := q.high[0]
		q.high = q.high[1:]
		return t
	}
	if len(q.normal) > 0 {
		t := q.normal[0]
		q.normal = q.normal[1:]
		return t
	}
	return nil
}

func (q *LoadQueue) scheduleLocked() {
	for q.running < q.workers {
		task := q.popLocked()
		if task == nil {
			return
		}
		q.running++
		q.wg.Add(1)
		go q.run(task)
	}
}

func (q *LoadQueue) run(task *queuedTask) {
	q.loadFn(task.trackID, task.path)

	q.mu.Lock()
	delete(q.inflight, task.trackID)
	close(task.done)
	q.running--
	if !q.closed {
		q.scheduleLocked()
	}
	q.mu.Unlock()
	q.wg.Done()
}

// Shutdown resolves every queued task immediately without running its work,
// waits for in-flight tasks to finish, and makes all future enqueues resolve
// immediately. Safe to call more than once.
func (q *LoadQueue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.closed = true

	drained := 0
	for _, task := range append(append([]*queuedTask(nil), q.high...), q.normal...) {
		delete(q.inflight, task.trackID)
		close(task.done)
		drained++
	}
	q.high = nil
	q.normal = nil
	q.mu.Unlock()

	q.wg.Wait()
	if drained > 0 {
		log.Debug().Int("drained", drained).Msg("Metadata queue shut down with tasks still queued")
	}
}
