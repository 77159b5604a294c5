package task

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task - единственная сохраняемая сущность бота.
// UUID генерируется как v7, поэтому порядок идентификаторов совпадает с порядком создания.
type Task struct {
	UUID        uuid.UUID  `json:"uuid" db:"uuid"`
	Owner       string     `json:"owner" db:"owner"`
	Name        string     `json:"name" db:"name"`
	Deadline    *time.Time `json:"deadline,omitempty" db:"deadline"`
	Priority    Priority   `json:"priority" db:"priority"`
	Completed   bool       `json:"completed" db:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	Reminded    bool       `json:"reminded" db:"reminded"`
}

type Priority string

const PriorityHigh Priority = "high"
const PriorityMedium Priority = "medium"
const PriorityLow Priority = "low"

// Weight задаёт порядок сортировки: High < Medium < Low.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Label - подпись приоритета для пользователя.
func (p Priority) Label() string {
	switch p {
	case PriorityHigh:
		return "高"
	case PriorityLow:
		return "低"
	default:
		return "中"
	}
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ParsePriority принимает 高/中/低 и high/medium/low без учёта регистра.
// Вторым значением возвращается признак того, что ввод распознан.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "高", "high":
		return PriorityHigh, true
	case "中", "medium":
		return PriorityMedium, true
	case "低", "low":
		return PriorityLow, true
	}
	return PriorityMedium, false
}

// HasDeadline - у задачи есть срок.
func (t *Task) HasDeadline() bool {
	return t.Deadline != nil
}

// Due - срок наступит не позже now+lead, задача не выполнена и о ней ещё не напоминали.
func (t *Task) Due(now time.Time, lead time.Duration) bool {
	if t.Completed || t.Reminded || t.Deadline == nil {
		return false
	}
	return !t.Deadline.After(now.Add(lead))
}

// Less - порядок списка: сначала невыполненные, затем по приоритету,
// затем по сроку (без срока - в конце), затем по UUID.
func Less(a, b *Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	if a.Priority.Weight() != b.Priority.Weight() {
		return a.Priority.Weight() < b.Priority.Weight()
	}
	switch {
	case a.Deadline == nil && b.Deadline != nil:
		return false
	case a.Deadline != nil && b.Deadline == nil:
		return true
	case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
		return a.Deadline.Before(*b.Deadline)
	}
	return CompareID(a.UUID, b.UUID) < 0
}

// CompareID сравнивает идентификаторы побайтово (для v7 - по времени создания).
func CompareID(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
