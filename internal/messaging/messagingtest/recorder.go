// Package messagingtest - записывающий Messenger для тестов.
package messagingtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"todobot/internal/messaging"
)

var ErrDeliveryFailed = errors.New("delivery failed")

type Sent struct {
	ChannelID string
	UserID    string
	Text      string
	Card      *messaging.Card
}

type Recorder struct {
	mtx        sync.Mutex
	sent       []Sent
	failDirect map[string]bool
	failAll    bool
	failCards  bool
}

func NewRecorder() *Recorder {
	return &Recorder{failDirect: make(map[string]bool)}
}

// FailDirect заставляет личные сообщения пользователю возвращать ошибку.
func (r *Recorder) FailDirect(userID string, fail bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.failDirect[userID] = fail
}

// FailAll заставляет любую отправку возвращать ошибку.
func (r *Recorder) FailAll(fail bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.failAll = fail
}

// FailCards заставляет только отправку карточек возвращать ошибку.
func (r *Recorder) FailCards(fail bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.failCards = fail
}

func (r *Recorder) SendText(ctx context.Context, channelID, text string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.failAll {
		return ErrDeliveryFailed
	}
	r.sent = append(r.sent, Sent{ChannelID: channelID, Text: text})
	return nil
}

func (r *Recorder) SendCard(ctx context.Context, channelID string, card messaging.Card) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.failAll || r.failCards {
		return ErrDeliveryFailed
	}
	r.sent = append(r.sent, Sent{ChannelID: channelID, Card: &card})
	return nil
}

func (r *Recorder) SendDirect(ctx context.Context, userID, text string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.failAll || r.failDirect[userID] {
		return ErrDeliveryFailed
	}
	r.sent = append(r.sent, Sent{UserID: userID, Text: text})
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// Texts возвращает тексты всех отправленных сообщений (без карточек).
func (r *Recorder) Texts() []string {
	var out []string
	for _, s := range r.Sent() {
		if s.Card == nil {
			out = append(out, s.Text)
		}
	}
	return out
}

// Last возвращает последнее отправленное сообщение.
func (r *Recorder) Last() (Sent, bool) {
	sent := r.Sent()
	if len(sent) == 0 {
		return Sent{}, false
	}
	return sent[len(sent)-1], true
}

// Contains - было ли сообщение, содержащее подстроку.
func (r *Recorder) Contains(substr string) bool {
	for _, text := range r.Texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

func (r *Recorder) Reset() {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.sent = nil
}

var _ messaging.Messenger = (*Recorder)(nil)
