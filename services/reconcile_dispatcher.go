package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"greenTrackAPI/internal/community"
)

// Reconciler is the work each dispatched job performs.
type Reconciler interface {
	Reconcile(ctx context.Context, communityID string) error
}

type DispatcherOptions struct {
	Workers       int
	QueueSize     int
	Timeout       time.Duration
	SweepInterval time.Duration
}

// ReconcileDispatcher runs leadership reconciliation off the request path.
// A community is never queued twice and never reconciled by two workers at
// once; a request that arrives while it is running triggers one more pass
// after the current one finishes.
type ReconcileDispatcher struct {
	reconciler    Reconciler
	registry      *community.Registry
	workers       int
	timeout       time.Duration
	sweepInterval time.Duration
	jobQueue      chan *ReconcileJob
	stopChan      chan struct{}
	wg            sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]bool
	running  map[string]bool
	dirty    map[string]bool
	stopped  bool
	stopOnce sync.Once
}

type ReconcileJob struct {
	ID          uuid.UUID
	CommunityID string
	QueuedAt    time.Time
}

func NewReconcileDispatcher(reconciler Reconciler, registry *community.Registry, opts DispatcherOptions) *ReconcileDispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	dispatcher := &ReconcileDispatcher{
		reconciler:    reconciler,
		registry:      registry,
		workers:       opts.Workers,
		timeout:       opts.Timeout,
		sweepInterval: opts.SweepInterval,
		jobQueue:      make(chan *ReconcileJob, opts.QueueSize),
		stopChan:      make(chan struct{}),
		pending:       make(map[string]bool),
		running:       make(map[string]bool),
		dirty:         make(map[string]bool),
	}

	dispatcher.startWorkers()

	if dispatcher.sweepInterval > 0 {
		dispatcher.wg.Add(1)
		go dispatcher.sweepCommunities()
	}

	return dispatcher
}

func (d *ReconcileDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *ReconcileDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(id, job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *ReconcileDispatcher) processJob(workerID int, job *ReconcileJob) {
	d.mu.Lock()
	delete(d.pending, job.CommunityID)
	d.running[job.CommunityID] = true
	d.mu.Unlock()

	defer d.finishJob(job.CommunityID)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Reconcile: Job %s for %s panicked: %v", job.ID, job.CommunityID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.reconciler.Reconcile(ctx, job.CommunityID); err != nil {
		log.Printf("Reconcile: Worker %d failed job %s for %s: %v", workerID, job.ID, job.CommunityID, err)
	}
}

func (d *ReconcileDispatcher) finishJob(communityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.running, communityID)
	if d.dirty[communityID] {
		delete(d.dirty, communityID)
		if !d.stopped {
			d.enqueueLocked(communityID)
		}
	}
}

// Schedule queues a reconciliation for communityID and returns immediately.
// When the queue is full the request is dropped; the next award or sweep
// for that community converges it.
func (d *ReconcileDispatcher) Schedule(communityID string) {
	if communityID == "" || communityID == community.GlobalID {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.stopped, d.pending[communityID]:
		return
	case d.running[communityID]:
		d.dirty[communityID] = true
		return
	}
	d.enqueueLocked(communityID)
}

func (d *ReconcileDispatcher) enqueueLocked(communityID string) {
	job := &ReconcileJob{
		ID:          uuid.New(),
		CommunityID: communityID,
		QueuedAt:    time.Now(),
	}

	select {
	case d.jobQueue <- job:
		d.pending[communityID] = true
	default:
		reconcileJobsDropped.Inc()
		log.Printf("Reconcile: Queue full, dropping job for %s", communityID)
	}
}

// Pending reports how many communities are waiting for a worker.
func (d *ReconcileDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// sweepCommunities periodically schedules every city so that drift from
// dropped jobs or failed batches is eventually repaired.
func (d *ReconcileDispatcher) sweepCommunities() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range d.registry.Cities() {
				d.Schedule(c.ID)
			}
		case <-d.stopChan:
			return
		}
	}
}

// Stop signals workers to exit and waits for in-flight jobs. Queued jobs
// that have not started are discarded.
func (d *ReconcileDispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()

		close(d.stopChan)
		d.wg.Wait()
		log.Println("Reconcile dispatcher stopped")
	})
}
