package scheduler

import (
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("typstcore.scheduler")

// Task is a unit of background work. Tasks with the same Name coalesce: while
// one is waiting in the queue, scheduling another replaces its Execute.
type Task struct {
	Name    string
	Execute func() error
}

// Scheduler runs tasks one at a time in the order they were first queued.
type Scheduler struct {
	taskQueue chan string
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]func() error
	stopped bool
}

// NewScheduler creates a new Scheduler with the specified queue size
func NewScheduler(queueSize int) *Scheduler {
	return &Scheduler{
		taskQueue: make(chan string, queueSize),
		pending:   make(map[string]func() error),
	}
}

// RunScheduler starts the scheduler loop
func (s *Scheduler) RunScheduler() {
	go func() {
		for name := range s.taskQueue {
			s.mu.Lock()
			execute := s.pending[name]
			delete(s.pending, name)
			s.mu.Unlock()

			log.Debugf("executing %s task", name)
			if err := execute(); err != nil {
				log.Errorf("%s task: %s", name, err)
			}
			s.wg.Done() // Mark the task as completed
		}
	}()
}

// Schedule queues task unless one of the same name is already waiting, in
// which case that one runs task's Execute instead. It reports false when
// the task was dropped because the queue is full or stopped.
func (s *Scheduler) Schedule(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		log.Warningf("scheduler stopped, dropping %s", task.Name)
		return false
	}
	if _, ok := s.pending[task.Name]; ok {
		s.pending[task.Name] = task.Execute
		log.Debugf("coalesced %s", task.Name)
		return true
	}
	select {
	case s.taskQueue <- task.Name:
		s.pending[task.Name] = task.Execute
		s.wg.Add(1)
		return true
	default:
		log.Warningf("skipped scheduling %s, queue is full", task.Name)
		return false
	}
}

// Wait blocks until every task queued so far has run.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// StopScheduler waits for all tasks to complete and stops the scheduler
func (s *Scheduler) StopScheduler() {
	log.Info("stopping scheduler")
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.taskQueue) // Close the task queue to prevent further submissions
	}
	s.mu.Unlock()
	s.wg.Wait() // Wait for all tasks to complete
	log.Info("scheduler stopped")
}
