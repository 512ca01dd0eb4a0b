// Package registry holds the live model of download tasks built from
// classified log events.
package registry

import (
	"sync"
	"time"

	"github.com/autobrr/botmon/pkg/task"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultExpiryDelay = 30 * time.Second

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type ClearFilter string

const (
	ClearCompleted ClearFilter = "completed"
	ClearAll       ClearFilter = "all"
)

func (f ClearFilter) Valid() bool {
	return f == ClearCompleted || f == ClearAll
}

type Config struct {
	// ExpiryDelay is how long a task stays visible after reaching a terminal status.
	ExpiryDelay time.Duration
	Clock       Clock
	// NewID generates ids for tasks that only show up as a filename.
	NewID  func() string
	Logger *zerolog.Logger
}

type Snapshot struct {
	Tasks  []task.Task `json:"tasks"`
	Count  int         `json:"count"`
	Active int         `json:"active"`
}

type Registry struct {
	mu sync.RWMutex

	tasks map[string]*task.Task
	order []string

	// pending maps a task id to the generation of its live expiry entry.
	pending map[string]uint64
	queue   expiryQueue
	gen     uint64

	delay time.Duration
	clock Clock
	newID func() string
	log   zerolog.Logger
}

func New(cfg Config) *Registry {
	r := &Registry{
		tasks:   map[string]*task.Task{},
		pending: map[string]uint64{},
		delay:   cfg.ExpiryDelay,
		clock:   cfg.Clock,
		newID:   cfg.NewID,
	}

	if r.delay <= 0 {
		r.delay = DefaultExpiryDelay
	}
	if r.clock == nil {
		r.clock = realClock{}
	}
	if r.newID == nil {
		r.newID = task.NewAutoID
	}
	if cfg.Logger != nil {
		r.log = cfg.Logger.With().Str("module", "registry").Logger()
	} else {
		r.log = log.Logger.With().Str("module", "registry").Logger()
	}

	return r
}

// Apply mutates at most one task according to the event and reports whether
// anything changed. Events that resolve to no task are dropped.
func (r *Registry) Apply(ev task.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case task.TaskDiscovered:
		return r.discover(ev.TaskID)
	case task.BatchInitialized:
		return r.initialize(ev.TaskID)
	case task.FileDownloadStarted:
		return r.bindFilename(ev.Filename)
	case task.ProgressUpdate:
		return r.progress(ev.Identifier, ev.Downloaded, ev.Total)
	case task.Terminal:
		return r.finish(ev.Filename, ev.Outcome)
	}

	return false
}

func (r *Registry) discover(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := r.tasks[id]; ok {
		return false
	}

	t := task.NewTask(id, r.clock.Now())
	r.insert(&t)

	r.log.Debug().Str("task_id", id).Msg("task discovered")

	return true
}

func (r *Registry) initialize(id string) bool {
	t, ok := r.tasks[id]
	if !ok {
		return false
	}

	return r.transition(t, task.Initializing)
}

func (r *Registry) bindFilename(filename string) bool {
	if filename == "" || r.findByFilename(filename) != nil {
		return false
	}

	for _, id := range r.order {
		t := r.tasks[id]
		if !t.HasPlaceholder() {
			continue
		}

		// a task already reporting progress by id keeps its status
		t.Filename = filename
		r.transition(t, task.Started)

		r.log.Debug().Str("task_id", id).Str("filename", filename).Msg("bound filename to queued task")

		return true
	}

	t := task.NewTask(r.newID(), r.clock.Now())
	t.Filename = filename
	t.Status = task.Started
	r.insert(&t)

	r.log.Debug().Str("task_id", t.ID).Str("filename", filename).Msg("no queued task for filename, created one")

	return true
}

func (r *Registry) progress(identifier string, downloaded, total int64) bool {
	t, ok := r.tasks[identifier]
	if !ok {
		t = r.findByFilename(identifier)
	}
	if t == nil {
		r.log.Trace().Str("identifier", identifier).Msg("progress update for unknown task")
		return false
	}

	if !task.ValidStateTransition(t.Status, task.Downloading) {
		return false
	}

	t.SetBytes(downloaded, total)
	t.Status = task.Downloading

	return true
}

func (r *Registry) finish(filename string, outcome task.Status) bool {
	if !outcome.Terminal() {
		return false
	}

	t := r.findByFilename(filename)
	if t == nil {
		return false
	}

	if !r.transition(t, outcome) {
		return false
	}

	if outcome == task.Completed {
		t.Progress = 100
	}

	r.scheduleExpiry(t.ID)

	r.log.Debug().Str("task_id", t.ID).Str("filename", filename).Str("status", outcome.String()).Msg("task finished")

	return true
}

func (r *Registry) transition(t *task.Task, dst task.Status) bool {
	if !task.ValidStateTransition(t.Status, dst) {
		return false
	}
	t.Status = dst
	return true
}

func (r *Registry) findByFilename(filename string) *task.Task {
	for _, id := range r.order {
		if t := r.tasks[id]; t.Filename == filename {
			return t
		}
	}
	return nil
}

func (r *Registry) insert(t *task.Task) {
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
}

func (r *Registry) remove(id string) bool {
	if _, ok := r.tasks[id]; !ok {
		return false
	}

	delete(r.tasks, id)
	delete(r.pending, id)

	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return true
}

func (r *Registry) scheduleExpiry(id string) {
	r.gen++
	r.pending[id] = r.gen
	r.queue.schedule(expiryEntry{id: id, at: r.clock.Now().Add(r.delay), gen: r.gen})
}

// Snapshot returns a copy of every task in discovery order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Tasks: make([]task.Task, 0, len(r.order)),
	}

	for _, id := range r.order {
		t := *r.tasks[id]
		if t.Status.Active() {
			s.Active++
		}
		s.Tasks = append(s.Tasks, t)
	}
	s.Count = len(s.Tasks)

	return s
}

func (r *Registry) Get(id string) (task.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return task.Task{}, false
	}

	return *t, true
}

// FindByFilename returns the task a Terminal event for filename resolves to.
func (r *Registry) FindByFilename(filename string) (task.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t := r.findByFilename(filename)
	if t == nil {
		return task.Task{}, false
	}

	return *t, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tasks)
}

// Clear removes the tasks selected by filter and returns how many went away.
// Pending expiries of removed tasks are cancelled.
func (r *Registry) Clear(filter ClearFilter) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, id := range r.order {
		switch filter {
		case ClearAll:
			ids = append(ids, id)
		case ClearCompleted:
			if r.tasks[id].Status.Terminal() {
				ids = append(ids, id)
			}
		}
	}

	for _, id := range ids {
		r.remove(id)
	}

	if len(ids) > 0 {
		r.log.Debug().Str("filter", string(filter)).Msgf("cleared %d tasks", len(ids))
	}

	return len(ids)
}

// Expire removes a task if it is still present. Missing ids are not an error.
func (r *Registry) Expire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remove(id)
}

// ExpireDue removes every task whose expiry is due at now. Entries belonging
// to tasks that were cleared meanwhile are skipped.
func (r *Registry) ExpireDue(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, e := range r.queue.popDue(now) {
		if gen, ok := r.pending[e.id]; !ok || gen != e.gen {
			continue
		}
		if r.remove(e.id) {
			removed++
			r.log.Trace().Str("task_id", e.id).Msg("expired finished task")
		}
	}

	return removed
}

// PendingExpiries is the number of scheduled removals not yet cancelled or run.
func (r *Registry) PendingExpiries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.pending)
}
