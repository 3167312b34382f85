package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/subsyncapp/subsync/internal/pkg/cache"
)

// Handler processes one job. A returned error triggers a retry until the
// job runs out of attempts.
type Handler func(ctx context.Context, job *Job) error

// Queue manages background jobs using Redis. Producers never block on job
// execution; a failed enqueue is logged by the caller and dropped.
type Queue struct {
	client   *redis.Client
	workers  int
	handlers map[string]Handler
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewQueue creates a new job queue
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 2
	}

	return &Queue{
		client:   cache.GetClient(),
		workers:  workers,
		handlers: make(map[string]Handler),
		stopCh:   make(chan struct{}),
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (q *Queue) Register(jobType string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue pushes a new job onto the queue and returns its id.
func (q *Queue) Enqueue(jobType string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   raw,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.LPush(ctx, JobQueueKey, data).Err(); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return job.ID, nil
}

// Start launches the worker pool.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	log.Printf("jobqueue: started %d workers", q.workers)
}

// Stop signals the workers to finish and waits for them.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	close(q.stopCh)
	q.wg.Wait()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		result, err := q.client.BRPop(ctx, 2*time.Second, JobQueueKey).Result()
		cancel()
		if err != nil {
			if err != redis.Nil {
				log.Printf("jobqueue: worker %d pop failed: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("jobqueue: worker %d dropping malformed job: %v", id, err)
			continue
		}
		q.process(&job)
	}
}

func (q *Queue) process(job *Job) {
	q.mu.Lock()
	handler, ok := q.handlers[job.Type]
	q.mu.Unlock()
	if !ok {
		log.Printf("jobqueue: no handler for job type %q, dropping %s", job.Type, job.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := handler(ctx, job); err != nil {
		job.Attempts++
		if job.Attempts >= DefaultMaxRetries {
			log.Printf("jobqueue: job %s (%s) failed after %d attempts: %v", job.ID, job.Type, job.Attempts, err)
			return
		}
		log.Printf("jobqueue: job %s (%s) failed (attempt %d), requeueing: %v", job.ID, job.Type, job.Attempts, err)
		if data, merr := json.Marshal(job); merr == nil {
			_ = q.client.LPush(ctx, JobQueueKey, data).Err()
		}
	}
}
