// Package lock выдаёт блокировки на аккаунт поверх транзакции БД.
// Любое действие, меняющее баланс, выполняется под блокировкой аккаунта,
// поэтому автопродление подписки не может пересечься с ручной покупкой.
//
// Local — мьютексы в памяти процесса (один инстанс бота).
// Redis — SET NX PX, для нескольких инстансов.
package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Locker берёт блокировку по ключу и возвращает функцию освобождения.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AccountKey — ключ блокировки аккаунта.
func AccountKey(accountID int64) string {
	return fmt.Sprintf("account:%d", accountID)
}

// LockAccounts блокирует несколько аккаунтов в порядке возрастания ID,
// чтобы два встречных перевода не заблокировали друг друга.
func LockAccounts(ctx context.Context, l Locker, ids ...int64) (func(), error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, id := range sorted {
		unlock, err := l.Lock(ctx, AccountKey(id))
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// Local — блокировки в памяти процесса.
// Записи удаляются, когда блокировку никто не держит и не ждёт.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // буфер 1: занято, если в канале лежит значение
	refs int
}

// NewLocal создаёт локальный Locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *Local) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// size — сколько ключей сейчас в таблице (для тестов).
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
