package monitor

import (
	"fmt"
	"time"

	"github.com/autobrr/botmon/pkg/diskusage"
	"github.com/autobrr/botmon/pkg/rate"
	"github.com/autobrr/botmon/pkg/stats"

	"github.com/dustin/go-humanize"
)

const (
	StreamProcessRead  = "process.read"
	StreamProcessWrite = "process.write"
	StreamProcessCPU   = "process.cpu"
	StreamSystemRx     = "system.rx"
	StreamSystemTx     = "system.tx"
)

const (
	StatusRunning    = "运行中"
	StatusNotRunning = "未运行"
)

// Status is the payload of /api/status. The string fields mirror what the
// dashboard renders, the numeric ones are there for scripts.
type Status struct {
	Status        string  `json:"status"`
	Pid           string  `json:"pid"`
	Uptime        string  `json:"uptime"`
	CPU           float64 `json:"cpu"`
	Memory        string  `json:"memory"`
	MemoryPercent float64 `json:"memory_percent"`
	Threads       string  `json:"threads"`

	DownloadSpeed string `json:"download_speed"`
	UploadSpeed   string `json:"upload_speed"`
	TotalDownload string `json:"total_download"`
	TotalUpload   string `json:"total_upload"`
	SysDownload   string `json:"sys_download"`
	SysUpload     string `json:"sys_upload"`

	Rates map[string]rate.StreamSnapshot `json:"rates"`
	Disk  *diskusage.Report              `json:"disk,omitempty"`

	ActiveTasks int    `json:"active_tasks"`
	TaskCount   int    `json:"task_count"`
	LastUpdate  string `json:"last_update"`
}

// processInfo is the non-rate part of the last process reading.
type processInfo struct {
	running bool
	pid     uint64
	rssKb   uint64
	memPct  float64
	threads uint64
	uptime  time.Duration
}

func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func buildStatus(p processInfo, rates map[string]rate.StreamSnapshot, numCPU int, now time.Time) Status {
	st := Status{
		Status:  StatusNotRunning,
		Pid:     "-",
		Uptime:  "-",
		Memory:  "0 B",
		Threads: "-",

		DownloadSpeed: FormatSpeed(rates[StreamProcessRead].Speed),
		UploadSpeed:   FormatSpeed(rates[StreamProcessWrite].Speed),
		TotalDownload: humanize.IBytes(rates[StreamProcessRead].Total),
		TotalUpload:   humanize.IBytes(rates[StreamProcessWrite].Total),
		SysDownload:   FormatSpeed(rates[StreamSystemRx].Speed),
		SysUpload:     FormatSpeed(rates[StreamSystemTx].Speed),

		Rates:      rates,
		LastUpdate: now.Local().Format("15:04:05"),
	}

	if !p.running {
		return st
	}

	st.Status = StatusRunning
	st.Pid = fmt.Sprintf("%d", p.pid)
	st.Uptime = FormatUptime(p.uptime)
	st.Memory = humanize.IBytes(p.rssKb * 1024)
	st.MemoryPercent = round1(p.memPct)
	st.Threads = fmt.Sprintf("%d", p.threads)

	// ticks per second over USER_HZ is the number of busy cores
	if numCPU > 0 {
		st.CPU = round1(rates[StreamProcessCPU].Speed / stats.ClockTicks * 100 / float64(numCPU))
	}

	return st
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}
