package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todobot/internal/conversation"
	"todobot/internal/logger"
	"todobot/internal/messaging"

	"go.uber.org/zap"
)

type MessageHandler struct {
	tasks     TaskService
	dialogues Dialogues
	sender    messaging.Sender
	channels  map[string]struct{}
	now       func() time.Time
}

type HandlerOption func(*MessageHandler)

// WithChannels ограничивает обработку указанными каналами.
// Без опции бот отвечает в любом канале сервера. Личные сообщения не обрабатываются.
func WithChannels(ids ...string) HandlerOption {
	return func(h *MessageHandler) {
		for _, id := range ids {
			if id != "" {
				h.channels[id] = struct{}{}
			}
		}
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *MessageHandler) {
		h.now = now
	}
}

func NewMessageHandler(tasks TaskService, dialogues Dialogues, sender messaging.Sender, opts ...HandlerOption) *MessageHandler {
	h := &MessageHandler{
		tasks:     tasks,
		dialogues: dialogues,
		sender:    sender,
		channels:  make(map[string]struct{}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleMessage - единая точка входа для входящих сообщений.
// Ответ в открытый диалог имеет приоритет над командами.
func (h *MessageHandler) HandleMessage(ctx context.Context, msg messaging.Message) {
	if msg.FromBot || msg.Direct || !h.allowed(msg.ChannelID) {
		return
	}

	if h.dialogues.Deliver(msg) {
		logger.MessageInfo(msg.AuthorID, msg.ChannelID, "Router: Ответ передан в диалог")
		return
	}

	cmd, args := Classify(msg.Content)
	if cmd == CommandNone {
		return
	}

	start := time.Now()
	logger.MessageInfo(msg.AuthorID, msg.ChannelID, "Router: Команда", zap.String("command", cmd.String()))

	switch cmd {
	case CommandHelp:
		h.reply(ctx, msg, helpText)
	case CommandAdd:
		h.add(ctx, msg)
	case CommandList:
		h.list(ctx, msg)
	case CommandComplete:
		h.complete(ctx, msg, args)
	case CommandDelete:
		h.delete(ctx, msg, args)
	}

	logger.Info("Router: Команда обработана",
		zap.String("command", cmd.String()),
		zap.String("user_id", msg.AuthorID),
		zap.Duration("ms", time.Since(start)))
}

func (h *MessageHandler) allowed(channelID string) bool {
	if len(h.channels) == 0 {
		return true
	}
	_, ok := h.channels[channelID]
	return ok
}

func (h *MessageHandler) add(ctx context.Context, msg messaging.Message) {
	err := h.dialogues.Start(ctx, msg.AuthorID, msg.ChannelID)
	if errors.Is(err, conversation.ErrDialogueActive) {
		h.reply(ctx, msg, msgDialogueActive)
		return
	}
	if err != nil {
		logger.Error("Router: Не удалось начать диалог", err, zap.String("user_id", msg.AuthorID))
		h.reply(ctx, msg, msgStoreFailure)
	}
}

func (h *MessageHandler) list(ctx context.Context, msg messaging.Message) {
	tasks, err := h.tasks.ListTasks(ctx, msg.AuthorID)
	if err != nil {
		h.reply(ctx, msg, businessErrorText(err, 0, msgStoreFailure))
		return
	}

	if len(tasks) == 0 {
		h.reply(ctx, msg, msgEmptyList)
		return
	}

	for _, card := range listCards(tasks, h.now()) {
		if err := h.sender.SendCard(ctx, msg.ChannelID, card); err != nil {
			logger.Warn("Router: Не удалось отправить список",
				zap.String("channel_id", msg.ChannelID),
				zap.Error(err))
			h.reply(ctx, msg, msgStoreFailure)
			return
		}
	}
}

func (h *MessageHandler) complete(ctx context.Context, msg messaging.Message, args []string) {
	rank, ok := parseRank(args)
	if !ok {
		h.reply(ctx, msg, msgCompleteUsage)
		return
	}

	t, err := h.tasks.CompleteTask(ctx, msg.AuthorID, rank)
	if err != nil {
		h.reply(ctx, msg, businessErrorText(err, rank, msgCompleteUsage))
		return
	}
	h.reply(ctx, msg, fmt.Sprintf(msgCompleted, rank, t.Name))
}

func (h *MessageHandler) delete(ctx context.Context, msg messaging.Message, args []string) {
	rank, ok := parseRank(args)
	if !ok {
		h.reply(ctx, msg, msgDeleteUsage)
		return
	}

	t, err := h.tasks.DeleteTask(ctx, msg.AuthorID, rank)
	if err != nil {
		h.reply(ctx, msg, businessErrorText(err, rank, msgDeleteUsage))
		return
	}
	h.reply(ctx, msg, fmt.Sprintf(msgDeleted, rank, t.Name))
}

func (h *MessageHandler) reply(ctx context.Context, msg messaging.Message, text string) {
	if err := h.sender.SendText(ctx, msg.ChannelID, text); err != nil {
		logger.Warn("Router: Не удалось отправить ответ",
			zap.String("user_id", msg.AuthorID),
			zap.String("channel_id", msg.ChannelID),
			zap.Error(err))
	}
}
