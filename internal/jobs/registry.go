// Package jobs tracks long-running pipeline jobs and fans their progress
// events out to any number of live or late-joining subscribers.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lecture-pipeline/internal/domain"
)

// ErrUnknownJob is returned when subscribing to a job id never created.
var ErrUnknownJob = errors.New("unknown job")

// Registry is a thread-safe job map with per-job event history and live
// subscriber wakeups. Worker goroutines push; subscriber goroutines read.
//
// Subscribers consume the history itself through a per-subscription cursor,
// so a slow reader can lag arbitrarily far behind without losing events;
// pushes only nudge them awake.
type Registry struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	history     map[string][]domain.Event
	subscribers map[string][]chan struct{}
	logger      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:        make(map[string]*domain.Job),
		history:     make(map[string][]domain.Event),
		subscribers: make(map[string][]chan struct{}),
		logger:      logger,
	}
}

// Create allocates a new queued job for the given original filename.
func (r *Registry) Create(filename string) string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = &domain.Job{
		ID:       id,
		Filename: filename,
		Status:   domain.JobStatusQueued,
		Message:  "Waiting...",
	}
	r.history[id] = nil
	r.subscribers[id] = nil
	return id
}

// Get returns a snapshot of the job, if it exists.
func (r *Registry) Get(id string) (domain.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// List returns a snapshot of every known job, in no particular order.
func (r *Registry) List() []domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Push records one event and wakes every live subscriber. Safe to call from
// any goroutine; events for unknown jobs are dropped. The wake channels only
// coalesce, never carry data, so a slow or stuck consumer can never lose an
// event or block the worker.
func (r *Registry) Push(id string, ev domain.Event) {
	ev.JobID = id

	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	job.Status = ev.Status
	job.Message = ev.Message
	job.Percent = ev.Percent
	if ev.OutputPath != "" {
		job.OutputPath = ev.OutputPath
	}
	if ev.Error != "" {
		job.Error = ev.Error
	}
	r.history[id] = append(r.history[id], ev)
	wakes := append([]chan struct{}(nil), r.subscribers[id]...)
	r.mu.Unlock()

	if ev.Status.Terminal() {
		r.logger.Info("jobs.finished", "job_id", id, "status", ev.Status, "percent", ev.Percent)
	}

	for _, wake := range wakes {
		select {
		case wake <- struct{}{}:
		default:
			// Already pending a wakeup; the subscriber reads the history
			// cursor forward anyway.
		}
	}
}

// Subscription yields one job's events in push order, ending permanently at
// the first terminal event. It reads the registry's history through a cursor,
// so history replay and live delivery are the same path and lossless.
type Subscription struct {
	registry *Registry
	jobID    string

	next int
	wake chan struct{}

	done   bool
	closed bool
}

// Subscribe starts a subscription for the job. No wake channel is registered
// when the job is already terminal; its history is complete.
func (r *Registry) Subscribe(id string) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrUnknownJob
	}

	sub := &Subscription{registry: r, jobID: id}
	if !job.Status.Terminal() {
		sub.wake = make(chan struct{}, 1)
		r.subscribers[id] = append(r.subscribers[id], sub.wake)
	}
	return sub, nil
}

// Next returns the next event for the stream. heartbeat=true marks a
// keep-alive tick with no event. ok=false means the stream has ended:
// the terminal event was already delivered, the subscription was closed,
// or ctx expired.
func (s *Subscription) Next(ctx context.Context, heartbeatEvery time.Duration) (ev domain.Event, heartbeat bool, ok bool) {
	for {
		if s.done || s.closed {
			return domain.Event{}, false, false
		}

		s.registry.mu.Lock()
		history := s.registry.history[s.jobID]
		if s.next < len(history) {
			ev = history[s.next]
			s.next++
			s.registry.mu.Unlock()
			if ev.Status.Terminal() {
				s.done = true
			}
			return ev, false, true
		}
		s.registry.mu.Unlock()

		if s.wake == nil {
			// Job was terminal at subscribe time and replay is exhausted.
			s.done = true
			return domain.Event{}, false, false
		}

		timer := time.NewTimer(heartbeatEvery)
		select {
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
			return domain.Event{}, true, true
		case <-ctx.Done():
			timer.Stop()
			return domain.Event{}, false, false
		}
	}
}

// Close deregisters the wake channel. Safe to call multiple times.
func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.wake == nil {
		return
	}

	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	wakes := s.registry.subscribers[s.jobID]
	for i, wake := range wakes {
		if wake == s.wake {
			s.registry.subscribers[s.jobID] = append(wakes[:i], wakes[i+1:]...)
			break
		}
	}
}
