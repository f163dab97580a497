package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/estimator-api/internal/metrics"
	"go.uber.org/zap"
)

// Job asks for the cached record under PropertyKey to be rebuilt from Address.
type Job struct {
	PropertyKey string
	Address     string
}

// Refresher runs background cache refreshes on a fixed worker pool. A key
// already queued or running is not queued again; a full queue drops the job.
type Refresher struct {
	ch      chan Job
	inFly   sync.Map // key -> struct{}
	do      func(ctx context.Context, j Job)
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex // guards closed and sends on ch
	closed bool
}

func New(capacity, workerCount int, timeout time.Duration, log *zap.Logger, do func(ctx context.Context, j Job)) *Refresher {
	if capacity <= 0 {
		capacity = 256
	}
	if workerCount <= 0 {
		workerCount = 2
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Refresher{ch: make(chan Job, capacity), do: do, timeout: timeout, log: log}
	r.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go r.worker()
	}
	return r
}

// Enqueue reports whether the job was accepted. Jobs offered after Close
// are refused.
func (r *Refresher) Enqueue(j Job) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	if _, exists := r.inFly.LoadOrStore(j.PropertyKey, struct{}{}); exists {
		return false
	}
	select {
	case r.ch <- j:
		return true
	default:
		r.inFly.Delete(j.PropertyKey)
		metrics.RefreshQueueDropped.Inc()
		r.log.Warn("refresh queue full, dropping job", zap.String("property_key", j.PropertyKey))
		return false
	}
}

// Close stops accepting work and waits for queued jobs to finish.
func (r *Refresher) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Refresher) worker() {
	defer r.wg.Done()
	for j := range r.ch {
		r.run(j)
	}
}

func (r *Refresher) run(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("refresh panicked", zap.String("property_key", j.PropertyKey), zap.Any("panic", p))
		}
		r.inFly.Delete(j.PropertyKey)
		cancel()
	}()
	if r.do != nil {
		r.do(ctx, j)
	}
}
