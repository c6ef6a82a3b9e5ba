package bot

import (
	"errors"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramMaxMessageLength is the maximum length of a Telegram message.
const TelegramMaxMessageLength = 4096

const (
	sendAttempts = 3
	sendBackoff  = time.Second
)

// API is the part of the Telegram client the handlers talk to. *tele.Bot
// implements it.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	StopPoll(msg tele.Editable, opts ...interface{}) (*tele.Poll, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// MessageRef points at an already sent message.
func MessageRef(chatID int64, messageID int) *tele.Message {
	return &tele.Message{ID: messageID, Chat: &tele.Chat{ID: chatID}}
}

// SendWithRetry retries transport failures. Errors reported by the Telegram
// API itself are returned at once.
func (b *Bot) SendWithRetry(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		var msg *tele.Message
		msg, err = b.api.Send(to, what, opts...)
		if err == nil {
			return msg, nil
		}
		var apiErr *tele.Error
		if errors.As(err, &apiErr) || attempt == sendAttempts {
			break
		}
		b.logger.Warn("send failed, retrying", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * b.sendBackoff)
	}
	return nil, err
}

// SendTemporary sends a message and deletes it after ttl. A zero ttl uses
// the default of 30 seconds.
func (b *Bot) SendTemporary(to tele.Recipient, what interface{}, ttl time.Duration, opts ...interface{}) (*tele.Message, error) {
	msg, err := b.api.Send(to, what, opts...)
	if err != nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	time.AfterFunc(ttl, func() {
		if err := b.api.Delete(msg); err != nil {
			b.logger.Debug("failed to delete temporary message", "error", err)
		}
	})
	return msg, nil
}
