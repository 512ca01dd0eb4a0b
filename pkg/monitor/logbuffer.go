package monitor

import "sync"

// LogBuffer keeps the most recent raw log lines for the dashboard.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 1
	}
	return &LogBuffer{lines: make([]string, size)}
}

func (b *LogBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
}

// Lines returns a copy, oldest first.
func (b *LogBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		return append([]string{}, b.lines[:b.next]...)
	}

	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}
