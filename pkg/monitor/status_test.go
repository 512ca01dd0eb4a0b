package monitor

import (
	"testing"
	"time"

	"github.com/autobrr/botmon/pkg/rate"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00:00"},
		{in: 59 * time.Second, want: "00:00:59"},
		{in: time.Hour + 2*time.Minute + 3*time.Second + 400*time.Millisecond, want: "01:02:03"},
		{in: 50*time.Hour + 5*time.Second, want: "2d 02:00:05"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUptime(tt.in))
		})
	}
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "0 B/s", FormatSpeed(0))
	assert.Equal(t, "0 B/s", FormatSpeed(-5))
	assert.Equal(t, "1.5 KiB/s", FormatSpeed(1536))
}

func TestBuildStatus(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	rates := map[string]rate.StreamSnapshot{
		StreamProcessCPU:  {Speed: 200},
		StreamProcessRead: {Speed: 1024, Total: 1 << 20},
	}

	st := buildStatus(processInfo{running: true, pid: 7, rssKb: 2048, memPct: 12.345, threads: 3, uptime: time.Minute}, rates, 4, now)

	assert.Equal(t, StatusRunning, st.Status)
	assert.Equal(t, "7", st.Pid)
	assert.Equal(t, 50.0, st.CPU)
	assert.Equal(t, 12.3, st.MemoryPercent)
	assert.Equal(t, "2.0 MiB", st.Memory)
	assert.Equal(t, "1.0 KiB/s", st.DownloadSpeed)
	assert.Equal(t, "1.0 MiB", st.TotalDownload)
	assert.Equal(t, "12:00:00", st.LastUpdate)

	st = buildStatus(processInfo{}, rates, 4, now)
	assert.Equal(t, StatusNotRunning, st.Status)
	assert.Equal(t, 0.0, st.CPU)
}
