package conversation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"todobot/internal/conversation"
	"todobot/internal/messaging"
	"todobot/internal/messaging/messagingtest"
	"todobot/internal/models/task"
	"todobot/internal/repository/task/inmemory"
	"todobot/internal/service"
	"todobot/internal/timeparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID    = "user-1"
	channelID = "todo"
)

var fixedNow = time.Date(2026, 1, 10, 5, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *conversation.Engine
	svc      *service.TaskService
	sender   *messagingtest.Recorder
	outcomes chan conversation.Outcome
}

func newFixture(t *testing.T, creator conversation.TaskCreator, opts ...conversation.Option) *fixture {
	t.Helper()

	f := &fixture{
		sender:   messagingtest.NewRecorder(),
		outcomes: make(chan conversation.Outcome, 8),
	}
	if creator == nil {
		f.svc = service.NewTaskService(inmemory.NewTaskStorage())
		creator = f.svc
	}

	parser := timeparse.New(timeparse.WithClock(func() time.Time { return fixedNow }))
	opts = append(opts, conversation.WithObserver(func(o conversation.Outcome) {
		f.outcomes <- o
	}))
	f.engine = conversation.NewEngine(creator, parser, f.sender, opts...)
	return f
}

func (f *fixture) reply(user, channel, content string) bool {
	return f.engine.Deliver(messaging.Message{AuthorID: user, ChannelID: channel, Content: content})
}

func (f *fixture) outcome(t *testing.T) conversation.Outcome {
	t.Helper()
	select {
	case o := <-f.outcomes:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("диалог не завершился")
		return conversation.Outcome{}
	}
}

func (f *fixture) tasks(t *testing.T, owner string) []service.RankedTask {
	t.Helper()
	tasks, err := f.svc.ListTasks(context.Background(), owner)
	require.NoError(t, err)
	return tasks
}

func TestEngine_AddFlowCommits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, userID, channelID))
	assert.True(t, f.engine.Active(userID))

	assert.True(t, f.reply(userID, channelID, "Buy milk"))
	assert.True(t, f.reply(userID, channelID, "tomorrow 9"))
	assert.True(t, f.reply(userID, channelID, "High"))

	o := f.outcome(t)
	assert.Equal(t, conversation.Committed, o.State)
	require.NotNil(t, o.Task)

	tasks := f.tasks(t, userID)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, "Buy milk", got.Name)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(time.Date(2026, 1, 11, 1, 0, 0, 0, time.UTC)))
	assert.False(t, got.Completed)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.Reminded)

	assert.False(t, f.engine.Active(userID))
	assert.True(t, f.sender.Contains("✅ 已添加 Todo: Buy milk [优先: 高] [截止: 2026/01/11 09:00]"))
}

func TestEngine_CancelDiscardsAndAllowsRestart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, userID, channelID))
	f.reply(userID, channelID, "Buy milk")
	f.reply(userID, channelID, "CANCEL")

	o := f.outcome(t)
	assert.Equal(t, conversation.Cancelled, o.State)
	assert.Nil(t, o.Task)
	assert.Empty(t, f.tasks(t, userID))
	assert.True(t, f.sender.Contains("🚫 已取消添加。"))

	require.NoError(t, f.engine.Start(ctx, userID, channelID))
	f.sender.Reset()
	f.reply(userID, channelID, "取消")
	o = f.outcome(t)
	assert.Equal(t, conversation.Cancelled, o.State)
}

func TestEngine_CancelFromEveryStep(t *testing.T) {
	tests := []struct {
		name    string
		replies []string
	}{
		{name: "awaiting name", replies: nil},
		{name: "awaiting deadline", replies: []string{"Task"}},
		{name: "awaiting priority", replies: []string{"Task", "无"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			require.NoError(t, f.engine.Start(context.Background(), userID, channelID))
			for _, r := range tt.replies {
				f.reply(userID, channelID, r)
			}
			f.reply(userID, channelID, " 取消 ")

			assert.Equal(t, conversation.Cancelled, f.outcome(t).State)
			assert.Empty(t, f.tasks(t, userID))
		})
	}
}

func TestEngine_Timeout(t *testing.T) {
	f := newFixture(t, nil, conversation.WithTimeout(50*time.Millisecond))

	require.NoError(t, f.engine.Start(context.Background(), userID, channelID))
	f.reply(userID, channelID, "Buy milk")

	o := f.outcome(t)
	assert.Equal(t, conversation.TimedOut, o.State)
	assert.Empty(t, f.tasks(t, userID))
	assert.True(t, f.sender.Contains("⌛ 等待超时，已取消添加。"))
	assert.False(t, f.engine.Active(userID))

	require.NoError(t, f.engine.Start(context.Background(), userID, channelID))
	assert.Equal(t, conversation.TimedOut, f.outcome(t).State)
}

func TestEngine_RejectsReentrantStart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.engine.Start(ctx, userID, channelID))
	err := f.engine.Start(ctx, userID, "other")
	assert.ErrorIs(t, err, conversation.ErrDialogueActive)

	// другой пользователь не блокируется
	require.NoError(t, f.engine.Start(ctx, "user-2", channelID))

	f.reply(userID, channelID, "cancel")
	f.reply("user-2", channelID, "cancel")
	f.outcome(t)
	f.outcome(t)
}

func TestEngine_DeliverScopedToUserAndChannel(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.engine.Start(context.Background(), userID, channelID))

	assert.False(t, f.reply("user-2", channelID, "чужое"))
	assert.False(t, f.reply(userID, "other-channel", "not here"))
	assert.True(t, f.reply(userID, channelID, "cancel"))

	assert.Equal(t, conversation.Cancelled, f.outcome(t).State)
	assert.False(t, f.reply(userID, channelID, "after"))
}

func TestEngine_InvalidDeadlineReprompts(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.engine.Start(context.Background(), userID, channelID))

	f.reply(userID, channelID, "Report")
	f.reply(userID, channelID, "next friday")
	f.reply(userID, channelID, "2026-01-15 18:30")
	f.reply(userID, channelID, "whatever")

	o := f.outcome(t)
	require.Equal(t, conversation.Committed, o.State)
	assert.True(t, f.sender.Contains("无法识别的时间格式"))

	tasks := f.tasks(t, userID)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.PriorityMedium, tasks[0].Priority)
	require.NotNil(t, tasks[0].Deadline)
	assert.True(t, tasks[0].Deadline.Equal(time.Date(2026, 1, 15, 10, 30, 59, int(999*time.Millisecond), time.UTC)))
}

func TestEngine_NoDeadlineAndEmptyName(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.engine.Start(context.Background(), userID, channelID))

	f.reply(userID, channelID, "   ")
	f.reply(userID, channelID, "Read book")
	f.reply(userID, channelID, "没有")
	f.reply(userID, channelID, "低")

	require.Equal(t, conversation.Committed, f.outcome(t).State)
	assert.True(t, f.sender.Contains("任务名称不能为空"))
	assert.True(t, f.sender.Contains("✅ 已添加 Todo: Read book [优先: 低]"))

	tasks := f.tasks(t, userID)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Read book", tasks[0].Name)
	assert.Nil(t, tasks[0].Deadline)
}

type failingCreator struct{}

func (failingCreator) CreateTask(ctx context.Context, owner, name string, deadline *time.Time, priority task.Priority) (*task.Task, error) {
	return nil, service.NewStoreError("create", errors.New("disk full"))
}

func TestEngine_StoreFailureNoConfirmation(t *testing.T) {
	f := newFixture(t, failingCreator{})
	require.NoError(t, f.engine.Start(context.Background(), userID, channelID))

	f.reply(userID, channelID, "Task")
	f.reply(userID, channelID, "无")
	f.reply(userID, channelID, "中")

	o := f.outcome(t)
	assert.Equal(t, conversation.Failed, o.State)
	assert.Nil(t, o.Task)
	assert.True(t, f.sender.Contains("❌ 保存失败，请稍后再试。"))
	assert.False(t, f.sender.Contains("已添加"))
}

// blockingCreator держит сохранение до закрытия release.
type blockingCreator struct {
	entered chan struct{}
	release chan struct{}
}

func (c blockingCreator) CreateTask(ctx context.Context, owner, name string, deadline *time.Time, priority task.Priority) (*task.Task, error) {
	close(c.entered)
	<-c.release
	return task.New(owner, task.WithName(name), task.WithDeadline(deadline), task.WithPriority(priority)), nil
}

func TestEngine_DeliverRefusedWhileCommitting(t *testing.T) {
	creator := blockingCreator{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, creator)
	require.NoError(t, f.engine.Start(context.Background(), userID, channelID))

	f.reply(userID, channelID, "Task")
	f.reply(userID, channelID, "无")
	f.reply(userID, channelID, "高")

	select {
	case <-creator.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("сохранение не началось")
	}

	// слот ещё занят, но сообщение должно уйти в роутер
	assert.True(t, f.engine.Active(userID))
	assert.False(t, f.reply(userID, channelID, "列表"))

	close(creator.release)
	o := f.outcome(t)
	assert.Equal(t, conversation.Committed, o.State)
	assert.Equal(t, "Task", o.Task.Name)
}

// gatedSender не отправляет ничего до закрытия gate.
type gatedSender struct {
	*messagingtest.Recorder
	gate chan struct{}
}

func (g gatedSender) SendText(ctx context.Context, channelID, text string) error {
	<-g.gate
	return g.Recorder.SendText(ctx, channelID, text)
}

func TestEngine_DeliverRefusedWhenQueueFull(t *testing.T) {
	sender := gatedSender{Recorder: messagingtest.NewRecorder(), gate: make(chan struct{})}
	parser := timeparse.New(timeparse.WithClock(func() time.Time { return fixedNow }))
	engine := conversation.NewEngine(service.NewTaskService(inmemory.NewTaskStorage()), parser, sender)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, engine.Start(ctx, userID, channelID))

	// диалог застрял на первом приглашении и не читает очередь
	msg := messaging.Message{AuthorID: userID, ChannelID: channelID, Content: "x"}
	for i := 0; i < 4; i++ {
		assert.True(t, engine.Deliver(msg), "reply %d", i)
	}
	assert.False(t, engine.Deliver(msg))

	cancel()
	close(sender.gate)
	engine.Wait()
	assert.False(t, engine.Active(userID))
}

func TestEngine_WaitAfterShutdown(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, f.engine.Start(ctx, userID, channelID))
	cancel()
	f.engine.Wait()

	assert.False(t, f.engine.Active(userID))
	assert.Equal(t, conversation.Cancelled, f.outcome(t).State)
}

func TestConfirmation(t *testing.T) {
	deadline := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	withDeadline := task.New("u", task.WithName("A"), task.WithDeadline(&deadline), task.WithPriority(task.PriorityLow))
	assert.Equal(t, "✅ 已添加 Todo: A [优先: 低] [截止: 2026/01/15 18:30]", conversation.Confirmation(withDeadline))

	plain := task.New("u", task.WithName("B"))
	assert.Equal(t, "✅ 已添加 Todo: B [优先: 中]", conversation.Confirmation(plain))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_name", conversation.AwaitingName.String())
	assert.Equal(t, "timed_out", conversation.TimedOut.String())
	assert.False(t, conversation.AwaitingPriority.Terminal())
	assert.True(t, conversation.Failed.Terminal())
}
