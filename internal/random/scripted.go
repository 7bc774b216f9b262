package random

import "sync"

// Scripted отдаёт заранее заданные значения UniformInt по кругу.
// Значение зажимается в [min, max]. Используется в тестах, когда нужен
// конкретный исход розыгрыша.
type Scripted struct {
	mu     sync.Mutex
	values []int
	pos    int
}

// NewScripted создаёт источник со сценарием values.
func NewScripted(values ...int) *Scripted {
	return &Scripted{values: values}
}

func (s *Scripted) UniformInt(min, max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return min
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (s *Scripted) WeightedIndex(weights []int) (int, error) {
	total := Total(weights)
	if total <= 0 {
		return 0, ErrNoWeights
	}
	return Pick(weights, s.UniformInt(1, total))
}
