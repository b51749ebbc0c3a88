package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ledgerls.scheduler")

type Task struct {
	Name    string
	Execute func(ctx context.Context) error
}

// Scheduler runs tasks one at a time from a bounded queue.
type Scheduler struct {
	taskQueue chan Task
	mu        sync.Mutex // guards stopped and sends on taskQueue
	stopped   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler creates a new Scheduler with the specified queue size
func NewScheduler(queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		taskQueue: make(chan Task, queueSize),
		stopChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// RunScheduler starts the scheduler loop
func (s *Scheduler) RunScheduler() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// the queue is closed by StopScheduler; remaining tasks are drained
		for task := range s.taskQueue {
			s.execute(task)
		}
	}()
}

func (s *Scheduler) execute(task Task) {
	log.Debugf("executing %s task", task.Name)
	start := time.Now()
	if err := task.Execute(s.ctx); err != nil {
		log.Errorf("task %s failed: %s", task.Name, err)
		return
	}
	log.Debugf("task %s done in %s", task.Name, time.Since(start))
}

// SchedulePeriodicTask enqueues task every interval. A tick is skipped when
// the queue is full.
func (s *Scheduler) SchedulePeriodicTask(interval time.Duration, task Task) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if s.stopped {
					s.mu.Unlock()
					return
				}
				select {
				case s.taskQueue <- task:
					log.Debugf("scheduled %s", task.Name)
				default:
					log.Infof("skipped scheduling %s: queue is full", task.Name)
				}
				s.mu.Unlock()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// ScheduleHighPriorityTask enqueues a task, waiting for room in the queue.
// It reports false once the scheduler is stopped.
func (s *Scheduler) ScheduleHighPriorityTask(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.taskQueue <- task
	return true
}

// StopScheduler stops periodic scheduling, runs the tasks still queued and
// waits for them to complete. The context passed to tasks is canceled after
// timeout.
func (s *Scheduler) StopScheduler(timeout time.Duration) {
	log.Info("stopping scheduler")
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	close(s.taskQueue)
	s.mu.Unlock()

	timer := time.AfterFunc(timeout, s.cancel)
	s.wg.Wait()
	timer.Stop()
	s.cancel()
	log.Info("scheduler stopped")
}
