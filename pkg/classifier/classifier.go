// Package classifier turns raw worker log lines into task lifecycle events.
//
// Classify never fails. A line that matches no pattern, or matches one but
// carries numbers that do not parse, produces no event and is dropped; the
// worker's log stream is free text and most of it is noise.
package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/autobrr/botmon/pkg/task"
)

var (
	reTaskDiscovered = regexp.MustCompile(`Processing task: (\w+)`)
	reBatchStarting  = regexp.MustCompile(`batch_file\[(\w+)\]: Starting`)
	reFileStarting   = regexp.MustCompile(`file\[(.+?)\]: Starting file download`)
	reProgress       = regexp.MustCompile(`Progress update: (.+?), (\d+)/(\d+)`)
	reCompleted      = regexp.MustCompile(`file\[(.+?)\].*(?i:downloaded successfully|completed)`)
	reFileAny        = regexp.MustCompile(`file\s*\[(.+?)\]`)
)

var (
	completedMarkers = []string{"downloaded successfully", "upload completed"}
	failureKeywords  = []string{"failed", "error", "canceled", "cancelled"}
	cancelKeywords   = []string{"canceled", "cancelled", "context canceled"}
)

// Classify maps one log line to at most one event. Stages are tried in order
// and the first stage whose marker is present decides the result.
func Classify(line string) (task.Event, bool) {
	if m := reTaskDiscovered.FindStringSubmatch(line); m != nil {
		return task.Event{Kind: task.TaskDiscovered, TaskID: m[1]}, true
	}

	if m := reBatchStarting.FindStringSubmatch(line); m != nil {
		return task.Event{Kind: task.BatchInitialized, TaskID: m[1]}, true
	}

	if m := reFileStarting.FindStringSubmatch(line); m != nil {
		return task.Event{Kind: task.FileDownloadStarted, Filename: m[1]}, true
	}

	if m := reProgress.FindStringSubmatch(line); m != nil {
		downloaded, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return task.Event{}, false
		}
		total, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return task.Event{}, false
		}

		return task.Event{
			Kind:       task.ProgressUpdate,
			Identifier: strings.TrimSpace(m[1]),
			Downloaded: downloaded,
			Total:      total,
		}, true
	}

	lower := strings.ToLower(line)

	// a completion marker claims the line even without a file capture
	if containsAny(line, completedMarkers) || strings.Contains(lower, "completed") {
		if m := reCompleted.FindStringSubmatch(line); m != nil {
			return task.Event{Kind: task.Terminal, Filename: m[1], Outcome: task.Completed}, true
		}
		return task.Event{}, false
	}

	if containsAny(lower, failureKeywords) {
		m := reFileAny.FindStringSubmatch(line)
		if m == nil {
			return task.Event{}, false
		}

		outcome := task.Failed
		if containsAny(lower, cancelKeywords) {
			outcome = task.Cancelled
		}

		return task.Event{Kind: task.Terminal, Filename: m[1], Outcome: outcome}, true
	}

	return task.Event{}, false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
