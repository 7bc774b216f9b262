// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: обработку истёкших подписок
// и предупреждения об окончании подписки.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/features/subscription"
)

// Schedule — cron-выражения задач.
type Schedule struct {
	SubscriptionSweep string        // Продление и отключение истёкших подписок
	ExpiringNotice    string        // Предупреждения об окончании
	ExpiringWindow    time.Duration // За сколько до окончания предупреждать
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron          *cron.Cron
	subscriptions *subscription.Service
	schedule      Schedule
	now           common.Clock
}

// NewScheduler создаёт планировщик задач в часовом поясе игры.
func NewScheduler(subscriptions *subscription.Service, schedule Schedule, loc *time.Location, now common.Clock) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(loc)),
		subscriptions: subscriptions,
		schedule:      schedule,
		now:           now,
	}
}

// Start регистрирует задачи и запускает cron. Неверное выражение — ошибка.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule.SubscriptionSweep, func() { s.sweepSubscriptions(ctx) }); err != nil {
		return fmt.Errorf("расписание подписок %q: %w", s.schedule.SubscriptionSweep, err)
	}
	if _, err := s.cron.AddFunc(s.schedule.ExpiringNotice, func() { s.noticeExpiring(ctx) }); err != nil {
		return fmt.Errorf("расписание напоминаний %q: %w", s.schedule.ExpiringNotice, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"sweep":  s.schedule.SubscriptionSweep,
		"notice": s.schedule.ExpiringNotice,
	}).Info("Планировщик задач запущен")
	return nil
}

// Run запускает планировщик и ждёт отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop останавливает планировщик и дожидается выполняющихся задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

func (s *Scheduler) sweepSubscriptions(ctx context.Context) {
	res, err := s.subscriptions.CheckExpired(ctx, s.now())
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка обработки подписок")
		return
	}
	if res.Checked > 0 {
		log.WithFields(log.Fields{
			"checked": res.Checked,
			"renewed": res.Renewed,
			"expired": res.Expired,
			"failed":  res.Failed,
		}).Info("[CRON] Подписки обработаны")
	}
}

func (s *Scheduler) noticeExpiring(ctx context.Context) {
	sent, err := s.subscriptions.NotifyExpiring(ctx, s.now(), s.schedule.ExpiringWindow)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка напоминаний о подписке")
		return
	}
	log.WithField("sent", sent).Debug("[CRON] Напоминания о подписке")
}
