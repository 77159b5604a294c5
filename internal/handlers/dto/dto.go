package dto

import (
	"todobot/internal/service"
	"todobot/internal/timeparse"
)

// TaskView - задача в том виде, в каком её видит пользователь.
type TaskView struct {
	Rank      int    `json:"rank"`
	Name      string `json:"name"`
	Priority  string `json:"priority"`
	Deadline  string `json:"deadline"`
	Completed bool   `json:"completed"`
	Reminded  bool   `json:"reminded"`
}

func (v TaskView) Marker() string {
	if v.Completed {
		return "✅"
	}
	return "⬜"
}

func FromTask(t service.RankedTask) TaskView {
	return TaskView{
		Rank:      t.Rank,
		Name:      t.Name,
		Priority:  t.Priority.Label(),
		Deadline:  timeparse.Format(t.Deadline),
		Completed: t.Completed,
		Reminded:  t.Reminded,
	}
}

func FromTaskList(tasks []service.RankedTask) []TaskView {
	result := make([]TaskView, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
