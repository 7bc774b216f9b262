// Package events — шина доменных событий внутри процесса.
// Сервисы публикуют события после фиксации транзакции; подписчики
// (уведомления в Telegram, метрики) не влияют на результат операции.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Типы событий
const (
	RewardGranted         = "reward_granted"
	StreakClaimed         = "streak_claimed"
	WheelSpun             = "wheel_spun"
	ReferralPaid          = "referral_paid"
	SubscriptionPurchased = "subscription_purchased"
	SubscriptionRenewed   = "subscription_renewed"
	SubscriptionExpired   = "subscription_expired"
	SubscriptionExpiring  = "subscription_expiring"
	FusionCompleted       = "fusion_completed"
	CollectibleMinted     = "collectible_minted"
	UpgradePurchased      = "upgrade_purchased"
	PetPurchased          = "pet_purchased"
	MarketSale            = "market_sale"
	BattleFinished        = "battle_finished"
)

// Event — одно доменное событие.
type Event struct {
	ID        uuid.UUID
	Type      string
	AccountID int64
	ChatID    int64
	Data      map[string]string
	At        time.Time
}

// New создаёт событие с новым ID.
func New(typ string, accountID, chatID int64, at time.Time, data map[string]string) Event {
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		AccountID: accountID,
		ChatID:    chatID,
		Data:      data,
		At:        at,
	}
}

// Handler обрабатывает событие. Должен быть быстрым: Publish синхронный.
type Handler func(Event)

// Publisher — то, что нужно сервисам.
type Publisher interface {
	Publish(events ...Event)
}

// Bus — синхронная шина. Паника подписчика логируется и не доходит до издателя.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus создаёт пустую шину.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe добавляет подписчика на все события.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish доставляет события всем подписчикам по порядку.
func (b *Bus) Publish(events ...Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, ev := range events {
		for _, h := range handlers {
			deliver(h, ev)
		}
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event": ev.Type,
				"id":    ev.ID,
				"panic": r,
			}).Error("Паника в подписчике события")
		}
	}()
	h(ev)
}

// Recorder запоминает опубликованные события. Нужен в тестах сервисов.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// Events возвращает копию записанных событий.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count — сколько событий указанного типа записано.
func (r *Recorder) Count(typ string) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
