// Package conversation ведёт пошаговый диалог добавления задачи:
// название -> срок -> приоритет -> сохранение.
//
// На каждого пользователя приходится не больше одного диалога. Ожидание ответа
// не блокирует обработку сообщений: диалог живёт в своей горутине, а ответы
// доставляются в него из общего обработчика через Deliver.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"todobot/internal/logger"
	"todobot/internal/messaging"
	"todobot/internal/models/task"
	"todobot/internal/timeparse"

	"go.uber.org/zap"
)

var ErrDialogueActive = errors.New("у пользователя уже идёт диалог")
var ErrTimeout = errors.New("истекло время ожидания ответа")

const DefaultTimeout = 60 * time.Second

// размер очереди ответов; при переполнении сообщение уходит в роутер
const replyBuffer = 4

type TaskCreator interface {
	CreateTask(ctx context.Context, owner, name string, deadline *time.Time, priority task.Priority) (*task.Task, error)
}

type DeadlineParser interface {
	Parse(input string) timeparse.Result
}

// Outcome - итог завершённого диалога.
type Outcome struct {
	UserID    string
	ChannelID string
	State     State
	Task      *task.Task
}

type Engine struct {
	creator     TaskCreator
	parser      DeadlineParser
	sender      messaging.Sender
	timeout     time.Duration
	cancelWords map[string]struct{}
	observer    func(Outcome)

	mtx       sync.Mutex
	dialogues map[string]*dialogue
	wg        sync.WaitGroup
}

type Option func(*Engine)

func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithCancelWords(words ...string) Option {
	return func(e *Engine) {
		if len(words) == 0 {
			return
		}
		e.cancelWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			e.cancelWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}
}

// WithObserver вызывается после завершения каждого диалога.
func WithObserver(fn func(Outcome)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

func NewEngine(creator TaskCreator, parser DeadlineParser, sender messaging.Sender, opts ...Option) *Engine {
	e := &Engine{
		creator: creator,
		parser:  parser,
		sender:  sender,
		timeout: DefaultTimeout,
		cancelWords: map[string]struct{}{
			"取消":     {},
			"cancel": {},
		},
		dialogues: make(map[string]*dialogue),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type dialogue struct {
	userID    string
	channelID string
	state     State
	replies   chan string
	// sealed - диалог больше не принимает ответы; под Engine.mtx
	sealed bool

	name     string
	deadline *time.Time
	priority task.Priority
	created  *task.Task
}

// await - точка приостановки: ждём следующий ответ пользователя или таймаут.
func (d *dialogue) await(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-d.replies:
		return reply, nil
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Start занимает слот пользователя и запускает диалог.
// Повторный вызов до завершения диалога возвращает ErrDialogueActive.
func (e *Engine) Start(ctx context.Context, userID, channelID string) error {
	e.mtx.Lock()
	if _, ok := e.dialogues[userID]; ok {
		e.mtx.Unlock()
		return ErrDialogueActive
	}
	d := &dialogue{
		userID:    userID,
		channelID: channelID,
		state:     AwaitingName,
		replies:   make(chan string, replyBuffer),
		priority:  task.PriorityMedium,
	}
	e.dialogues[userID] = d
	e.wg.Add(1)
	e.mtx.Unlock()

	logger.Info("Dialogue: Начало диалога",
		zap.String("user_id", userID),
		zap.String("channel_id", channelID))

	go e.run(ctx, d)
	return nil
}

// Deliver передаёт сообщение ожидающему диалогу того же пользователя в том же канале.
// Возвращает true, только если сообщение поставлено в очередь диалога.
// Диалог, который уже сохраняет задачу или завершается, сообщения не принимает.
func (e *Engine) Deliver(msg messaging.Message) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	d, ok := e.dialogues[msg.AuthorID]
	if !ok || d.channelID != msg.ChannelID || d.sealed {
		return false
	}

	select {
	case d.replies <- msg.Content:
		return true
	default:
		logger.Warn("Dialogue: Очередь ответов переполнена, сообщение передано роутеру",
			zap.String("user_id", msg.AuthorID),
			zap.String("channel_id", msg.ChannelID))
		return false
	}
}

// seal закрывает диалог для новых ответов.
func (e *Engine) seal(d *dialogue) {
	e.mtx.Lock()
	d.sealed = true
	e.mtx.Unlock()
}

// Active - у пользователя есть незавершённый диалог.
func (e *Engine) Active(userID string) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	_, ok := e.dialogues[userID]
	return ok
}

// Wait дожидается завершения всех диалогов (после отмены контекста).
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, d *dialogue) {
	defer e.wg.Done()

	e.send(ctx, d, promptName)

	notice := ""
	for !d.state.Terminal() {
		reply, err := d.await(ctx, e.timeout)
		switch {
		case errors.Is(err, ErrTimeout):
			e.seal(d)
			d.state, notice = TimedOut, noticeTimedOut
		case err != nil:
			// остановка приложения: молча
			e.seal(d)
			d.state = Cancelled
		case e.isCancel(reply):
			e.seal(d)
			d.state, notice = Cancelled, noticeCancelled
		default:
			notice = e.step(ctx, d, reply)
		}
	}

	e.finish(ctx, d, notice)
}

// step применяет ответ к текущему шагу; для финального шага возвращает итоговое сообщение.
func (e *Engine) step(ctx context.Context, d *dialogue, reply string) string {
	switch d.state {
	case AwaitingName:
		name := strings.TrimSpace(reply)
		if name == "" {
			e.send(ctx, d, promptEmptyName)
			return ""
		}
		d.name = name
		d.state = AwaitingDeadline
		e.send(ctx, d, promptDeadline)

	case AwaitingDeadline:
		res := e.parser.Parse(reply)
		if res.Kind == timeparse.Invalid {
			logger.Info("Dialogue: Не удалось разобрать срок",
				zap.String("user_id", d.userID),
				zap.String("input", reply))
			e.send(ctx, d, deadlineHelp)
			return ""
		}
		d.deadline = res.Deadline()
		d.state = AwaitingPriority
		e.send(ctx, d, promptPriority)

	case AwaitingPriority:
		// нераспознанный приоритет молча заменяется на средний
		d.priority, _ = task.ParsePriority(reply)
		e.seal(d)
		return e.commit(ctx, d)
	}
	return ""
}

func (e *Engine) commit(ctx context.Context, d *dialogue) string {
	created, err := e.creator.CreateTask(ctx, d.userID, d.name, d.deadline, d.priority)
	if err != nil {
		logger.Error("Dialogue: Не удалось сохранить задачу", err, zap.String("user_id", d.userID))
		d.state = Failed
		return noticeStoreFailure
	}

	d.created = created
	d.state = Committed
	return Confirmation(created)
}

// Confirmation - сводка по только что добавленной задаче.
func Confirmation(t *task.Task) string {
	text := fmt.Sprintf("✅ 已添加 Todo: %s [优先: %s]", t.Name, t.Priority.Label())
	if t.Deadline != nil {
		text += fmt.Sprintf(" [截止: %s]", timeparse.Format(t.Deadline))
	}
	return text
}

func (e *Engine) isCancel(reply string) bool {
	_, ok := e.cancelWords[strings.ToLower(strings.TrimSpace(reply))]
	return ok
}

func (e *Engine) send(ctx context.Context, d *dialogue, text string) {
	if err := e.sender.SendText(ctx, d.channelID, text); err != nil {
		logger.Warn("Dialogue: Не удалось отправить сообщение",
			zap.String("user_id", d.userID),
			zap.String("channel_id", d.channelID),
			zap.Error(err))
	}
}

// finish освобождает слот до итогового сообщения, чтобы следующее
// сообщение пользователя уже обрабатывалось как команда.
func (e *Engine) finish(ctx context.Context, d *dialogue, notice string) {
	e.mtx.Lock()
	if e.dialogues[d.userID] == d {
		delete(e.dialogues, d.userID)
	}
	e.mtx.Unlock()

	logger.Info("Dialogue: Диалог завершён",
		zap.String("user_id", d.userID),
		zap.String("state", d.state.String()))

	if notice != "" {
		e.send(ctx, d, notice)
	}

	if e.observer != nil {
		e.observer(Outcome{
			UserID:    d.userID,
			ChannelID: d.channelID,
			State:     d.state,
			Task:      d.created,
		})
	}
}
