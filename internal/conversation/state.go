package conversation

type State int

const (
	AwaitingName State = iota
	AwaitingDeadline
	AwaitingPriority
	Committed
	Cancelled
	TimedOut
	// Failed - хранилище не сохранило задачу
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingName:
		return "awaiting_name"
	case AwaitingDeadline:
		return "awaiting_deadline"
	case AwaitingPriority:
		return "awaiting_priority"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s >= Committed
}
