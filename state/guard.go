package state

import "sync"

type Task string

const (
	TaskScrapeLogs  Task = "scrape_logs"
	TaskProcessLogs Task = "process_logs"
	TaskExecuteJobs Task = "execute_jobs"
)

// Guard is held while a task is in flight. Release is safe to call more than once.
type Guard struct {
	store *Store
	task  Task
	once  sync.Once
}

func (g *Guard) Task() Task {
	return g.task
}

func (g *Guard) Release() {
	g.once.Do(func() {
		g.store.mu.Lock()
		defer g.store.mu.Unlock()
		delete(g.store.activeTasks, g.task)
	})
}

// Acquire marks task as active. It fails with ErrAlreadyActive if another
// holder has not released it yet.
func (s *Store) Acquire(task Task) (*Guard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activeTasks[task]; ok {
		return nil, ErrAlreadyActive
	}
	s.activeTasks[task] = struct{}{}
	return &Guard{store: s, task: task}, nil
}

func (s *Store) ActiveTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]Task, 0, len(s.activeTasks))
	for task := range s.activeTasks {
		tasks = append(tasks, task)
	}
	return tasks
}
