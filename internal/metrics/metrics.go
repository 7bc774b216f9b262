// Package metrics — счётчики Prometheus для экономики и бота.
// Бизнес-счётчики обновляются подпиской на шину событий,
// сервисы про метрики ничего не знают.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"serotonyl.ru/bear-tycoon/internal/events"
)

// Metrics — набор счётчиков приложения.
type Metrics struct {
	Events   *prometheus.CounterVec // доменные события по типу
	Rewards  *prometheus.CounterVec // награды из кейсов по кейсу и редкости
	Commands *prometheus.CounterVec // команды бота
	Errors   *prometheus.CounterVec // ошибки обработчиков по команде
	Limited  prometheus.Counter     // апдейты, отброшенные лимитером
}

// New создаёт счётчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bear_tycoon",
			Name:      "events_total",
			Help:      "Domain events by type",
		}, []string{"type"}),
		Rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bear_tycoon",
			Name:      "case_rewards_total",
			Help:      "Case rewards by case tier and rarity",
		}, []string{"case", "rarity"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bear_tycoon",
			Name:      "bot_commands_total",
			Help:      "Bot commands handled",
		}, []string{"command"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bear_tycoon",
			Name:      "bot_errors_total",
			Help:      "Bot command failures",
		}, []string{"command"}),
		Limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bear_tycoon",
			Name:      "bot_rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter",
		}),
	}
	reg.MustRegister(m.Events, m.Rewards, m.Commands, m.Errors, m.Limited)
	return m
}

// Observe — подписчик шины событий.
func (m *Metrics) Observe(ev events.Event) {
	m.Events.WithLabelValues(ev.Type).Inc()
	if ev.Type == events.RewardGranted {
		m.Rewards.WithLabelValues(ev.Data["case"], ev.Data["rarity"]).Inc()
	}
}
