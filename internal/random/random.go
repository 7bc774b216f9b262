// Package random — источник случайности для кейсов, колеса фортуны,
// слияний и боёв. Сервисы получают Source снаружи, поэтому в тестах
// результат розыгрыша полностью воспроизводим.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"sync"
)

// ErrNoWeights — набор весов пустой или сумма весов не положительна.
var ErrNoWeights = errors.New("пустой набор весов")

// Source — инъецируемый генератор.
type Source interface {
	// UniformInt возвращает равномерное целое в [min, max] включительно.
	UniformInt(min, max int) int
	// WeightedIndex выбирает индекс с вероятностью weights[i] / сумма.
	WeightedIndex(weights []int) (int, error)
}

// Seeded — детерминированный генератор (PCG). Безопасен для горутин.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded создаёт генератор с заданным зерном.
// Зерно 0 заменяется криптографически случайным.
func NewSeeded(seed uint64) *Seeded {
	if seed == 0 {
		seed = NewSeed()
	}
	return &Seeded{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSeed возвращает случайное зерно из crypto/rand.
func NewSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Uint64()
	}
	return binary.LittleEndian.Uint64(b[:])
}

func (s *Seeded) UniformInt(min, max int) int {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.IntN(max-min+1)
}

func (s *Seeded) WeightedIndex(weights []int) (int, error) {
	total := Total(weights)
	if total <= 0 {
		return 0, ErrNoWeights
	}
	return Pick(weights, s.UniformInt(1, total))
}

// Total — сумма положительных весов.
func Total(weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	return total
}

// Pick проходит по весам, накапливая сумму, и возвращает первый индекс,
// у которого накопленная сумма >= draw. draw должен лежать в [1, Total].
func Pick(weights []int, draw int) (int, error) {
	if draw < 1 {
		return 0, ErrNoWeights
	}
	acc := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if acc >= draw {
			return i, nil
		}
	}
	return 0, ErrNoWeights
}

// Choose выбирает элемент items с вероятностью, пропорциональной weights.
func Choose[T any](src Source, items []T, weights []int) (T, error) {
	var zero T
	if len(items) != len(weights) {
		return zero, errors.New("длины items и weights различаются")
	}
	i, err := src.WeightedIndex(weights)
	if err != nil {
		return zero, err
	}
	return items[i], nil
}
