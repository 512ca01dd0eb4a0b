package task

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PlaceholderFilename marks a task whose filename has not shown up in the log yet.
const PlaceholderFilename = "等待解析..."

const StartTimeLayout = "2006-01-02 15:04:05"

var ErrUnknownStatus = errors.New("unknown task status")

type Task struct {
	ID         string
	Filename   string
	Downloaded int64
	Total      int64
	Progress   float64
	Status     Status
	StartTime  time.Time
}

func NewTask(id string, now time.Time) Task {
	return Task{
		ID:        id,
		Filename:  PlaceholderFilename,
		Status:    Queued,
		StartTime: now,
	}
}

// NewAutoID returns an id for a task that was never announced by the worker.
func NewAutoID() string {
	return "auto_" + uuid.NewString()[:8]
}

// HasPlaceholder reports whether the filename is still unresolved.
func (t *Task) HasPlaceholder() bool {
	return t.Filename == "" || t.Filename == PlaceholderFilename
}

// SetBytes updates the counters and recomputes progress.
func (t *Task) SetBytes(downloaded, total int64) {
	if downloaded < 0 {
		downloaded = 0
	}
	if total < 0 {
		total = 0
	}
	t.Downloaded = downloaded
	t.Total = total
	t.Progress = ComputeProgress(downloaded, total)
}

// ComputeProgress is downloaded/total as a percentage rounded to one decimal,
// 0 when total is unknown.
func ComputeProgress(downloaded, total int64) float64 {
	if total <= 0 || downloaded <= 0 {
		return 0
	}
	p := math.Round(float64(downloaded)/float64(total)*1000) / 10
	if p > 100 {
		return 100
	}
	return p
}

type taskJSON struct {
	ID         string  `json:"task_id"`
	Filename   string  `json:"filename"`
	Downloaded int64   `json:"downloaded"`
	Total      int64   `json:"total"`
	Progress   float64 `json:"progress"`
	Status     Status  `json:"status"`
	StartTime  string  `json:"start_time"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		ID:         t.ID,
		Filename:   t.Filename,
		Downloaded: t.Downloaded,
		Total:      t.Total,
		Progress:   t.Progress,
		Status:     t.Status,
		StartTime:  t.StartTime.Local().Format(StartTimeLayout),
	})
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var tj taskJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return err
	}

	start, err := time.ParseInLocation(StartTimeLayout, tj.StartTime, time.Local)
	if err != nil && tj.StartTime != "" {
		return errors.Wrapf(err, "could not parse start_time %q", tj.StartTime)
	}

	*t = Task{
		ID:         tj.ID,
		Filename:   tj.Filename,
		Downloaded: tj.Downloaded,
		Total:      tj.Total,
		Progress:   tj.Progress,
		Status:     tj.Status,
		StartTime:  start,
	}

	return nil
}

type EventKind int

const (
	TaskDiscovered EventKind = iota + 1
	BatchInitialized
	FileDownloadStarted
	ProgressUpdate
	Terminal
)

func (k EventKind) String() string {
	switch k {
	case TaskDiscovered:
		return "task_discovered"
	case BatchInitialized:
		return "batch_initialized"
	case FileDownloadStarted:
		return "file_download_started"
	case ProgressUpdate:
		return "progress_update"
	case Terminal:
		return "terminal"
	}
	return "unknown"
}

// Event is one classified log line. Which fields are set depends on Kind:
//
//	TaskDiscovered, BatchInitialized: TaskID
//	FileDownloadStarted:              Filename
//	ProgressUpdate:                   Identifier, Downloaded, Total
//	Terminal:                         Filename, Outcome
type Event struct {
	Kind       EventKind
	TaskID     string
	Filename   string
	Identifier string
	Downloaded int64
	Total      int64
	Outcome    Status
}
