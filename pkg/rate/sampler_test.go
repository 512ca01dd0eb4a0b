package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestSampler_FirstSampleIsZero(t *testing.T) {
	s := NewSampler()

	assert.Equal(t, 0.0, s.Sample("process.read", 123456, t0))
	assert.Equal(t, uint64(0), s.Total("process.read"))
}

func TestSampler_Speed(t *testing.T) {
	tests := []struct {
		name  string
		bytes uint64
		dt    time.Duration
		want  float64
	}{
		{name: "one second", bytes: 1024, dt: time.Second, want: 1024},
		{name: "half second", bytes: 1000, dt: 500 * time.Millisecond, want: 2000},
		{name: "three seconds", bytes: 10, dt: 3 * time.Second, want: 10.0 / 3.0},
		{name: "idle", bytes: 0, dt: time.Second, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSampler()
			s.Sample("k", 5000, t0)

			got := s.Sample("k", 5000+tt.bytes, t0.Add(tt.dt))
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.InDelta(t, tt.want, s.Speed("k"), 1e-9)
			assert.Equal(t, tt.bytes, s.Total("k"))
		})
	}
}

func TestSampler_NonIncreasingTimeKeepsLastSpeed(t *testing.T) {
	s := NewSampler()
	s.Sample("k", 0, t0)
	require.Equal(t, 100.0, s.Sample("k", 100, t0.Add(time.Second)))

	// duplicate tick
	assert.Equal(t, 100.0, s.Sample("k", 900, t0.Add(time.Second)))
	// out of order tick
	assert.Equal(t, 100.0, s.Sample("k", 900, t0))
	assert.Equal(t, uint64(100), s.Total("k"))

	// the ignored readings did not move the baseline
	assert.Equal(t, 50.0, s.Sample("k", 200, t0.Add(3*time.Second)))
}

func TestSampler_CounterReset(t *testing.T) {
	s := NewSampler()
	s.Sample("k", 1000, t0)
	s.Sample("k", 3000, t0.Add(time.Second))
	require.Equal(t, uint64(2000), s.Total("k"))

	// process restarted, counter starts over
	assert.Equal(t, 0.0, s.Sample("k", 10, t0.Add(2*time.Second)))
	assert.Equal(t, 0.0, s.Speed("k"))
	assert.Equal(t, uint64(2000), s.Total("k"))

	assert.Equal(t, 90.0, s.Sample("k", 100, t0.Add(3*time.Second)))
	assert.Equal(t, uint64(2090), s.Total("k"))
}

func TestSampler_HistoryIsBounded(t *testing.T) {
	s := NewSampler()
	s.Sample("k", 0, t0)

	var counter uint64
	for i := 1; i <= HistorySize+15; i++ {
		counter += uint64(i)
		s.Sample("k", counter, t0.Add(time.Duration(i)*time.Second))
	}

	st, ok := s.Stream("k")
	require.True(t, ok)
	require.Len(t, st.History, HistorySize)
	assert.Equal(t, 16.0, st.History[0])
	assert.Equal(t, float64(HistorySize+15), st.History[HistorySize-1])
}

func TestSampler_Rebase(t *testing.T) {
	s := NewSampler()
	s.Sample("k", 100, t0)
	s.Sample("k", 200, t0.Add(time.Second))

	s.Rebase("k")
	assert.Equal(t, 0.0, s.Speed("k"))

	// new process has a larger counter than the old one had
	assert.Equal(t, 0.0, s.Sample("k", 50000, t0.Add(2*time.Second)))
	assert.Equal(t, 10.0, s.Sample("k", 50010, t0.Add(3*time.Second)))
	assert.Equal(t, uint64(110), s.Total("k"))
}

func TestSampler_Snapshot(t *testing.T) {
	s := NewSampler()
	s.Sample("a", 0, t0)
	s.Sample("b", 0, t0)
	s.Sample("a", 10, t0.Add(time.Second))

	snap := s.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, []float64{10}, snap["a"].History)
	assert.Empty(t, snap["b"].History)

	s.Forget("a")
	_, ok := s.Stream("a")
	assert.False(t, ok)
	assert.Equal(t, 0.0, s.Speed("a"))
}
