// Package rate converts cumulative byte counters into per-second speeds.
package rate

import (
	"sync"
	"time"
)

// HistorySize is how many recent speeds each stream keeps for graphing.
const HistorySize = 60

type StreamSnapshot struct {
	Speed      float64   `json:"speed"`
	Total      uint64    `json:"total"`
	Counter    uint64    `json:"counter"`
	LastSample time.Time `json:"last_sample"`
	History    []float64 `json:"history"`
}

type stream struct {
	counter uint64
	at      time.Time
	speed   float64
	total   uint64
	rebase  bool

	// history is a ring; next is the slot the next speed goes into
	history []float64
	next    int
	full    bool
}

func (s *stream) record(speed float64) {
	if s.history == nil {
		s.history = make([]float64, HistorySize)
	}
	s.history[s.next] = speed
	s.next = (s.next + 1) % HistorySize
	if s.next == 0 {
		s.full = true
	}
}

// ordered returns the history oldest first.
func (s *stream) ordered() []float64 {
	if !s.full {
		return append([]float64(nil), s.history[:s.next]...)
	}
	out := make([]float64, 0, HistorySize)
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}

func (s *stream) snapshot() StreamSnapshot {
	return StreamSnapshot{
		Speed:      s.speed,
		Total:      s.total,
		Counter:    s.counter,
		LastSample: s.at,
		History:    s.ordered(),
	}
}

type Sampler struct {
	mu      sync.RWMutex
	streams map[string]*stream
}

func NewSampler() *Sampler {
	return &Sampler{
		streams: map[string]*stream{},
	}
}

// Sample feeds a new cumulative reading for key and returns the speed in
// units per second. The first reading of a stream, and any reading lower than
// the previous one, only sets a baseline and yields 0. A reading that is not
// newer than the previous one returns the last speed and is otherwise ignored.
func (s *Sampler) Sample(key string, counter uint64, ts time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[key]
	if !ok {
		s.streams[key] = &stream{counter: counter, at: ts}
		return 0
	}

	if st.rebase {
		st.rebase = false
		st.counter = counter
		st.at = ts
		return 0
	}

	dt := ts.Sub(st.at).Seconds()
	if dt <= 0 {
		return st.speed
	}

	if counter < st.counter {
		// counter reset, the process behind it restarted
		st.counter = counter
		st.at = ts
		st.speed = 0
		return 0
	}

	delta := counter - st.counter
	st.speed = float64(delta) / dt
	st.total += delta
	st.counter = counter
	st.at = ts
	st.record(st.speed)

	return st.speed
}

// Speed is the last computed speed of key, 0 for unknown streams.
func (s *Sampler) Speed(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[key]; ok {
		return st.speed
	}
	return 0
}

func (s *Sampler) Total(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[key]; ok {
		return st.total
	}
	return 0
}

func (s *Sampler) Stream(key string) (StreamSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streams[key]
	if !ok {
		return StreamSnapshot{}, false
	}
	return st.snapshot(), true
}

func (s *Sampler) Snapshot() map[string]StreamSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]StreamSnapshot, len(s.streams))
	for k, st := range s.streams {
		out[k] = st.snapshot()
	}
	return out
}

// Forget drops a stream so its next reading starts a fresh baseline.
// The cumulative total is lost with it.
func (s *Sampler) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.streams, key)
}

// Rebase keeps the cumulative total of key but treats the next reading as a
// new baseline. Used when the monitored process is replaced by a new pid.
func (s *Sampler) Rebase(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.streams[key]; ok {
		st.speed = 0
		st.rebase = true
	}
}
