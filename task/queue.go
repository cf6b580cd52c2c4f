package task

import (
	"context"
	"sync"
	"time"
)

// Queue is the scheduler thread of spec §4.E: it repeatedly scans PENDING
// entries in submission order, spawns an Executor for each entry not
// blocked by an already-EXECUTING entry or by an earlier entry already
// scheduled in this pass (preserving FIFO among conflicting tasks), and
// caps concurrent executors at MaxConcurrent.
type Queue struct {
	Store         Store
	NewExecutor   func(*TaskQueueEntry) *Executor
	MaxConcurrent int
	PollInterval  time.Duration

	mu       sync.Mutex
	running  map[int64]context.CancelFunc
	stop     chan struct{}
	done     chan struct{}
}

// NewQueue returns a Queue ready to Start.  maxConcurrent <= 0 means
// unlimited.
func NewQueue(store Store, newExecutor func(*TaskQueueEntry) *Executor, maxConcurrent int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1 << 30
	}
	return &Queue{
		Store:         store,
		NewExecutor:   newExecutor,
		MaxConcurrent: maxConcurrent,
		PollInterval:  500 * time.Millisecond,
		running:       map[int64]context.CancelFunc{},
	}
}

// Submit persists a new PENDING entry and returns its ID.
func (q *Queue) Submit(params TaskParameters) (int64, error) {
	entry := &TaskQueueEntry{Params: params, State: Pending, LastChange: time.Now()}
	return q.Store.Add(entry)
}

// Cancel signals the running executor for id, if any, to stop.  A not-yet-
// running PENDING task is instead marked CANCELLED directly.
func (q *Queue) Cancel(id int64) error {
	q.mu.Lock()
	cancel, running := q.running[id]
	q.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	entry, err := q.Store.ByID(id)
	if err != nil {
		return err
	}
	if entry.State.Terminal() {
		return nil
	}
	entry.State = Cancelled
	entry.LastChange = time.Now()
	return q.Store.Update(entry)
}

// Remove deletes a task record outright.
func (q *Queue) Remove(id int64) error {
	return q.Store.Remove(id)
}

// Query returns the current record for id.
func (q *Queue) Query(id int64) (*TaskQueueEntry, error) {
	return q.Store.ByID(id)
}

// Start launches the scheduler loop in a goroutine.
func (q *Queue) Start(ctx context.Context) {
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	go q.run(ctx)
}

// Stop requests the scheduler loop to exit and waits for it.  Already
// running executors are not cancelled by Stop; call Cancel per task first
// if that's desired.
func (q *Queue) Stop() {
	close(q.stop)
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	ticker := time.NewTicker(q.PollInterval)
	defer ticker.Stop()
	for {
		q.scheduleOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-ticker.C:
		}
	}
}

// scheduleOnce implements one scan pass of spec §4.E's scheduler steps 1-3.
func (q *Queue) scheduleOnce(ctx context.Context) {
	pending, err := q.Store.PendingInSubmissionOrder()
	if err != nil {
		return
	}
	executing, err := q.Store.Executing()
	if err != nil {
		return
	}

	q.mu.Lock()
	slotsFree := q.MaxConcurrent - len(q.running)
	q.mu.Unlock()
	if slotsFree <= 0 {
		return
	}

	scheduledThisPass := make([]*TaskQueueEntry, 0, len(pending))
	for _, candidate := range pending {
		if slotsFree <= 0 {
			break
		}
		if blockedByAny(candidate, executing) || blockedByAny(candidate, scheduledThisPass) {
			continue
		}
		scheduledThisPass = append(scheduledThisPass, candidate)
		slotsFree--
		q.spawn(ctx, candidate)
	}
}

func blockedByAny(candidate *TaskQueueEntry, others []*TaskQueueEntry) bool {
	for _, o := range others {
		if candidate.Blocks(o) {
			return true
		}
	}
	return false
}

func (q *Queue) spawn(ctx context.Context, entry *TaskQueueEntry) {
	execCtx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.running[entry.ID] = cancel
	q.mu.Unlock()

	ex := q.NewExecutor(entry)
	go func() {
		defer func() {
			q.mu.Lock()
			delete(q.running, entry.ID)
			q.mu.Unlock()
			cancel()
		}()
		_ = ex.Run(execCtx, entry)
	}()
}
