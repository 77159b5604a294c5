// Package discord связывает бота с Discord через discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todobot/internal/logger"
	"todobot/internal/messaging"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var ErrNotStarted = errors.New("discord: сессия не запущена")

// api - подмножество discordgo.Session, которым пользуется бот.
type api interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

type Bot struct {
	session *discordgo.Session
	api     api
	remove  func()
}

func New(token string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: создание сессии: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent

	return &Bot{session: session, api: session}, nil
}

// Start подписывает handler на новые сообщения и открывает соединение.
// ctx передаётся в handler и должен жить, пока работает бот.
func (b *Bot) Start(ctx context.Context, handler messaging.HandlerFunc) error {
	if b.session == nil {
		return ErrNotStarted
	}

	b.remove = b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		handler(ctx, toMessage(s, m))
	})
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("Discord: Бот подключён",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: подключение: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	if b.remove != nil {
		b.remove()
	}
	if b.session == nil {
		return nil
	}
	return b.session.Close()
}

func (b *Bot) SendText(ctx context.Context, channelID, text string) error {
	if _, err := b.api.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: отправка в канал %s: %w", channelID, err)
	}
	return nil
}

func (b *Bot) SendCard(ctx context.Context, channelID string, card messaging.Card) error {
	if _, err := b.api.ChannelMessageSendEmbed(channelID, toEmbed(card), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: отправка карточки в канал %s: %w", channelID, err)
	}
	return nil
}

// SendDirect открывает (или переиспользует) личный канал и пишет в него.
func (b *Bot) SendDirect(ctx context.Context, userID, text string) error {
	channel, err := b.api.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: личный канал %s: %w", userID, err)
	}
	return b.SendText(ctx, channel.ID, text)
}

func toMessage(s *discordgo.Session, m *discordgo.MessageCreate) messaging.Message {
	msg := messaging.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Direct:    m.GuildID == "",
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.FromBot = m.Author.Bot
	}
	// собственные сообщения тоже считаем сообщениями бота
	if s != nil && s.State != nil && s.State.User != nil && msg.AuthorID == s.State.User.ID {
		msg.FromBot = true
	}
	return msg
}

func toEmbed(card messaging.Card) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       card.Title,
		Description: card.Description,
		Color:       card.Color,
	}
	if !card.Timestamp.IsZero() {
		embed.Timestamp = card.Timestamp.Format(time.RFC3339)
	}
	for _, f := range card.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}

var _ messaging.Messenger = (*Bot)(nil)
