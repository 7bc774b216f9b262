// Package memory — хранилище в памяти процесса.
// Используется в тестах и для локального запуска без PostgreSQL (STORAGE_DRIVER=memory).
//
// Транзакции выполняются строго по одной: WithTx берёт мьютекс, работает
// с копией состояния и подменяет состояние только при успехе. Так откат
// при ошибке получается бесплатно, а блокировка аккаунта не нужна.
// Вложенные вызовы WithTx не поддерживаются.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/bear-tycoon/internal/common"
	"serotonyl.ru/bear-tycoon/internal/db"
	"serotonyl.ru/bear-tycoon/internal/models"
)

// Store — хранилище в памяти.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ db.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{st: newState()}
}

// WithTx выполняет fn над копией состояния и фиксирует её, если fn вернула nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx db.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Close ничего не делает.
func (s *Store) Close() {}

type state struct {
	seq map[string]int64

	accounts  map[int64]models.Account
	chatIndex map[int64]int64
	ledger    []models.Transaction
	pets      map[int64]models.Pet
	streaks   map[int64]models.Streak
	subs      map[int64]models.Subscription
	openings  []models.CaseOpening
	fusions   []models.FusionEvent
	upgrades  map[int64]map[string]int
	listings  map[int64]models.Listing
}

func newState() *state {
	return &state{
		seq:       make(map[string]int64),
		accounts:  make(map[int64]models.Account),
		chatIndex: make(map[int64]int64),
		pets:      make(map[int64]models.Pet),
		streaks:   make(map[int64]models.Streak),
		subs:      make(map[int64]models.Subscription),
		upgrades:  make(map[int64]map[string]int),
		listings:  make(map[int64]models.Listing),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:       maps.Clone(s.seq),
		accounts:  maps.Clone(s.accounts),
		chatIndex: maps.Clone(s.chatIndex),
		ledger:    slices.Clone(s.ledger),
		pets:      maps.Clone(s.pets),
		streaks:   maps.Clone(s.streaks),
		subs:      maps.Clone(s.subs),
		openings:  slices.Clone(s.openings),
		fusions:   slices.Clone(s.fusions),
		upgrades:  make(map[int64]map[string]int, len(s.upgrades)),
		listings:  maps.Clone(s.listings),
	}
	for id, levels := range s.upgrades {
		c.upgrades[id] = maps.Clone(levels)
	}
	return c
}

func (s *state) next(name string) int64 {
	s.seq[name]++
	return s.seq[name]
}

type tx struct {
	st *state
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, common.ErrNotFound)
}

// --- Аккаунты ---

func (t *tx) CreateAccount(_ context.Context, a *models.Account) error {
	if _, exists := t.st.chatIndex[a.ChatID]; exists {
		return fmt.Errorf("аккаунт с chat_id=%d уже существует", a.ChatID)
	}
	a.ID = t.st.next("accounts")
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
	t.st.accounts[a.ID] = *a
	t.st.chatIndex[a.ChatID] = a.ID
	return nil
}

func (t *tx) GetAccount(_ context.Context, id int64) (*models.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return nil, notFound("аккаунт", id)
	}
	return &a, nil
}

func (t *tx) GetAccountByChatID(ctx context.Context, chatID int64) (*models.Account, error) {
	id, ok := t.st.chatIndex[chatID]
	if !ok {
		return nil, fmt.Errorf("аккаунт chat_id=%d: %w", chatID, common.ErrNotFound)
	}
	return t.GetAccount(ctx, id)
}

func (t *tx) LockAccount(ctx context.Context, id int64) (*models.Account, error) {
	return t.GetAccount(ctx, id)
}

func (t *tx) UpdateAccount(_ context.Context, a *models.Account) error {
	if _, ok := t.st.accounts[a.ID]; !ok {
		return notFound("аккаунт", a.ID)
	}
	a.UpdatedAt = time.Now().UTC()
	t.st.accounts[a.ID] = *a
	return nil
}

// --- Журнал ---

func (t *tx) AppendTransaction(_ context.Context, tr *models.Transaction) error {
	tr.ID = t.st.next("transactions")
	t.st.ledger = append(t.st.ledger, *tr)
	return nil
}

func (t *tx) ListTransactions(_ context.Context, accountID int64, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for i := len(t.st.ledger) - 1; i >= 0; i-- {
		if t.st.ledger[i].AccountID != accountID {
			continue
		}
		tr := t.st.ledger[i]
		out = append(out, &tr)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *tx) SumTransactions(_ context.Context, accountID int64, asset models.Asset) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tr := range t.st.ledger {
		if tr.AccountID == accountID && tr.Asset == asset {
			sum = sum.Add(tr.Amount)
		}
	}
	return sum, nil
}

// --- Питомцы ---

func (t *tx) CreatePet(_ context.Context, p *models.Pet) error {
	if _, ok := t.st.accounts[p.OwnerID]; !ok {
		return notFound("владелец", p.OwnerID)
	}
	p.ID = t.st.next("pets")
	t.st.pets[p.ID] = *p
	return nil
}

func (t *tx) GetPet(_ context.Context, id int64) (*models.Pet, error) {
	p, ok := t.st.pets[id]
	if !ok {
		return nil, notFound("питомец", id)
	}
	return &p, nil
}

func (t *tx) UpdatePet(_ context.Context, p *models.Pet) error {
	if _, ok := t.st.pets[p.ID]; !ok {
		return notFound("питомец", p.ID)
	}
	if _, ok := t.st.accounts[p.OwnerID]; !ok {
		return notFound("владелец", p.OwnerID)
	}
	t.st.pets[p.ID] = *p
	return nil
}

func (t *tx) DeletePet(_ context.Context, id int64) error {
	if _, ok := t.st.pets[id]; !ok {
		return notFound("питомец", id)
	}
	delete(t.st.pets, id)
	return nil
}

func (t *tx) ListPets(_ context.Context, ownerID int64) ([]*models.Pet, error) {
	var out []*models.Pet
	for _, p := range t.st.pets {
		if p.OwnerID == ownerID {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Стрики ---

func (t *tx) GetStreak(_ context.Context, accountID int64) (*models.Streak, error) {
	s, ok := t.st.streaks[accountID]
	if !ok {
		return nil, notFound("стрик", accountID)
	}
	return &s, nil
}

func (t *tx) SaveStreak(_ context.Context, s *models.Streak) error {
	t.st.streaks[s.AccountID] = *s
	return nil
}

// --- Подписки ---

func (t *tx) GetSubscription(_ context.Context, accountID int64) (*models.Subscription, error) {
	s, ok := t.st.subs[accountID]
	if !ok {
		return nil, notFound("подписка", accountID)
	}
	return &s, nil
}

func (t *tx) SaveSubscription(_ context.Context, s *models.Subscription) error {
	if existing, ok := t.st.subs[s.AccountID]; ok {
		s.ID = existing.ID
	} else {
		s.ID = t.st.next("subscriptions")
	}
	t.st.subs[s.AccountID] = *s
	return nil
}

func (t *tx) ListDueSubscriptions(_ context.Context, before time.Time) ([]*models.Subscription, error) {
	return t.filterSubs(func(s models.Subscription) bool {
		return s.Status == models.SubscriptionActive && s.ExpiresAt.Before(before)
	}), nil
}

func (t *tx) ListExpiringSubscriptions(_ context.Context, from, to time.Time) ([]*models.Subscription, error) {
	return t.filterSubs(func(s models.Subscription) bool {
		return s.Status == models.SubscriptionActive && !s.ExpiresAt.Before(from) && s.ExpiresAt.Before(to)
	}), nil
}

func (t *tx) filterSubs(keep func(models.Subscription) bool) []*models.Subscription {
	var out []*models.Subscription
	for _, s := range t.st.subs {
		if keep(s) {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// --- История ---

func (t *tx) AppendCaseOpening(_ context.Context, o *models.CaseOpening) error {
	o.ID = t.st.next("case_openings")
	t.st.openings = append(t.st.openings, *o)
	return nil
}

func (t *tx) ListCaseOpenings(_ context.Context, accountID int64) ([]*models.CaseOpening, error) {
	var out []*models.CaseOpening
	for _, o := range t.st.openings {
		if o.AccountID == accountID {
			out = append(out, &o)
		}
	}
	return out, nil
}

func (t *tx) AppendFusion(_ context.Context, e *models.FusionEvent) error {
	e.ID = t.st.next("fusions")
	stored := *e
	stored.BurnedPetIDs = slices.Clone(e.BurnedPetIDs)
	t.st.fusions = append(t.st.fusions, stored)
	return nil
}

// --- Улучшения ---

func (t *tx) GetUpgradeLevels(_ context.Context, accountID int64) (map[string]int, error) {
	return maps.Clone(t.st.upgrades[accountID]), nil
}

func (t *tx) SetUpgradeLevel(_ context.Context, accountID int64, track string, level int) error {
	levels, ok := t.st.upgrades[accountID]
	if !ok {
		levels = make(map[string]int)
		t.st.upgrades[accountID] = levels
	}
	levels[track] = level
	return nil
}

// --- Маркет ---

func (t *tx) CreateListing(_ context.Context, l *models.Listing) error {
	l.ID = t.st.next("listings")
	t.st.listings[l.ID] = *l
	return nil
}

func (t *tx) GetListing(_ context.Context, id int64) (*models.Listing, error) {
	l, ok := t.st.listings[id]
	if !ok {
		return nil, notFound("лот", id)
	}
	return &l, nil
}

func (t *tx) UpdateListing(_ context.Context, l *models.Listing) error {
	if _, ok := t.st.listings[l.ID]; !ok {
		return notFound("лот", l.ID)
	}
	t.st.listings[l.ID] = *l
	return nil
}

func (t *tx) GetActiveListingByPet(_ context.Context, petID int64) (*models.Listing, error) {
	for _, l := range t.st.listings {
		if l.PetID == petID && l.Status == models.ListingActive {
			return &l, nil
		}
	}
	return nil, fmt.Errorf("активный лот питомца %d: %w", petID, common.ErrNotFound)
}

func (t *tx) ListActiveListings(_ context.Context, limit int) ([]*models.Listing, error) {
	var out []*models.Listing
	for _, l := range t.st.listings {
		if l.Status == models.ListingActive {
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
