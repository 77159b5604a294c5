package task

import (
	"time"
)

type TaskOption func(*Task)

func WithName(name string) TaskOption {
	return func(task *Task) {
		task.Name = name
	}
}

func WithDeadline(deadline *time.Time) TaskOption {
	if deadline == nil {
		return nil
	}
	return func(task *Task) {
		d := *deadline
		task.Deadline = &d
	}
}

func WithPriority(priority Priority) TaskOption {
	if !priority.Valid() {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

// New собирает новую задачу владельца; nil-опции пропускаются.
func New(owner string, opts ...TaskOption) *Task {
	t := &Task{
		Owner:    owner,
		Priority: PriorityMedium,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}
