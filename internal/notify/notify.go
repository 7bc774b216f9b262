// Package notify доставляет игрокам сообщения о событиях, которые
// произошли без их участия: реферальные начисления, продление и окончание
// подписки, продажа лота, вызов на бой.
//
// Notifier подписан на шину событий. Publish синхронный, поэтому события
// только кладутся в очередь, а отправка в Telegram идёт в Run.
package notify

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"serotonyl.ru/bear-tycoon/internal/events"
)

// Sender — часть tgbotapi.BotAPI, нужная для отправки сообщений.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Text отправляет простое текстовое сообщение и логирует ошибку.
func Text(s Sender, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// Telegram режет рассылку больше ~30 сообщений в секунду.
const (
	sendRate  = 25
	sendBurst = 5
)

// Notifier переводит события в сообщения.
type Notifier struct {
	sender  Sender
	loc     *time.Location
	queue   chan events.Event
	limiter *rate.Limiter
}

// New создаёт Notifier с очередью на size событий.
// Даты в сообщениях показываются в часовом поясе loc.
func New(sender Sender, loc *time.Location, size int) *Notifier {
	if size <= 0 {
		size = 256
	}
	return &Notifier{
		sender:  sender,
		loc:     loc,
		queue:   make(chan events.Event, size),
		limiter: rate.NewLimiter(sendRate, sendBurst),
	}
}

// Handle — подписчик шины. Не блокируется: при переполненной очереди
// событие отбрасывается.
func (n *Notifier) Handle(ev events.Event) {
	if !Wanted(ev) || ev.ChatID == 0 {
		return
	}
	select {
	case n.queue <- ev:
	default:
		log.WithFields(log.Fields{
			"event":   ev.Type,
			"chat_id": ev.ChatID,
		}).Warn("Очередь уведомлений переполнена, событие отброшено")
	}
}

// Run отправляет уведомления, пока не отменён ctx.
func (n *Notifier) Run(ctx context.Context) error {
	log.Info("Рассылка уведомлений запущена")
	for {
		select {
		case <-ctx.Done():
			log.Info("Рассылка уведомлений остановлена")
			return nil
		case ev := <-n.queue:
			if err := n.limiter.Wait(ctx); err != nil {
				return nil
			}
			if text, ok := Format(ev, n.loc); ok {
				Text(n.sender, ev.ChatID, text)
			}
		}
	}
}

// Outbox запоминает отправленные сообщения вместо Telegram. Нужен в тестах.
type Outbox struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	Err  error
}

func (o *Outbox) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return tgbotapi.Message{}, o.Err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		o.sent = append(o.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

// Sent возвращает копию отправленных сообщений.
func (o *Outbox) Sent() []tgbotapi.MessageConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]tgbotapi.MessageConfig, len(o.sent))
	copy(out, o.sent)
	return out
}

// Messages возвращает тексты отправленных сообщений по порядку.
func (o *Outbox) Messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, m := range o.sent {
		out = append(out, m.Text)
	}
	return out
}

// Last возвращает текст последнего сообщения или "".
func (o *Outbox) Last() string {
	msgs := o.Messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

// Reset очищает записанные сообщения.
func (o *Outbox) Reset() {
	o.mu.Lock()
	o.sent = nil
	o.mu.Unlock()
}
