// Package messaging описывает то, что ядру бота нужно от мессенджера:
// входящие сообщения, отправку текста и карточек в канал и личные сообщения.
package messaging

import (
	"context"
	"time"
)

type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
	FromBot   bool
	// Direct - личное сообщение вне сервера
	Direct bool
}

// Card - структурированное сообщение (embed в Discord).
type Card struct {
	Title       string
	Description string
	Color       int
	Fields      []CardField
	Timestamp   time.Time
}

type CardField struct {
	Name   string
	Value  string
	Inline bool
}

type Sender interface {
	SendText(ctx context.Context, channelID, text string) error
	SendCard(ctx context.Context, channelID string, card Card) error
}

type DirectSender interface {
	SendDirect(ctx context.Context, userID, text string) error
}

type Messenger interface {
	Sender
	DirectSender
}

// HandlerFunc обрабатывает одно входящее сообщение.
type HandlerFunc func(ctx context.Context, msg Message)
