package monitor

import (
	"context"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/autobrr/botmon/pkg/classifier"
	"github.com/autobrr/botmon/pkg/diskusage"
	"github.com/autobrr/botmon/pkg/history"
	"github.com/autobrr/botmon/pkg/logsource"
	"github.com/autobrr/botmon/pkg/metrics"
	"github.com/autobrr/botmon/pkg/rate"
	"github.com/autobrr/botmon/pkg/registry"
	"github.com/autobrr/botmon/pkg/stats"
	"github.com/autobrr/botmon/pkg/task"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	cfg *Config

	registry *registry.Registry
	sampler  *rate.Sampler
	logs     *LogBuffer
	metrics  *metrics.Metrics
	reader   stats.Reader
	clock    registry.Clock
	history  *history.Store

	// stdin is read when the log file is "-"
	stdin io.Reader

	mu      sync.RWMutex
	process processInfo
	disk    *diskusage.Report

	log zerolog.Logger
}

type Option func(*Service)

// WithReader replaces the procfs reader, mainly for tests.
func WithReader(r stats.Reader) Option {
	return func(s *Service) { s.reader = r }
}

func WithClock(c registry.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithStdin(r io.Reader) Option {
	return func(s *Service) { s.stdin = r }
}

// WithHistory archives finished tasks in an already opened store.
func WithHistory(h *history.Store) Option {
	return func(s *Service) { s.history = h }
}

func NewService(cfg *Config, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		sampler: rate.NewSampler(),
		logs:    NewLogBuffer(cfg.Monitor.RecentLogLines),
		metrics: metrics.New(),
		reader:  stats.NewProcReader(cfg.Monitor.ProcRoot),
		stdin:   os.Stdin,
		log:     log.Logger.With().Str("module", "monitor").Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registry = registry.New(registry.Config{
		ExpiryDelay: cfg.Monitor.ExpiryDelay,
		Clock:       s.clock,
	})

	return s
}

func (s *Service) Registry() *registry.Registry { return s.registry }

func (s *Service) Sampler() *rate.Sampler { return s.sampler }

func (s *Service) Logs() *LogBuffer { return s.logs }

func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// History is nil when archiving is disabled.
func (s *Service) History() *history.Store { return s.history }

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now()
}

// Run starts every loop and the API server and blocks until ctx is done or
// one of them fails. Applied task state is kept in memory until the process exits.
func (s *Service) Run(ctx context.Context) error {
	if s.history == nil && s.cfg.Monitor.HistoryFile != "" {
		h, err := history.Open(s.cfg.Monitor.HistoryFile)
		if err != nil {
			return err
		}
		defer h.Close()

		s.history = h
	}

	g, ctx := errgroup.WithContext(ctx)

	srv := NewAPIServer(s.cfg, s)

	g.Go(func() error {
		return srv.Open(ctx)
	})

	g.Go(func() error {
		return s.Ingest(ctx)
	})

	g.Go(func() error {
		s.SampleLoop(ctx)
		return nil
	})

	g.Go(func() error {
		s.RefreshLoop(ctx)
		return nil
	})

	if s.history != nil && s.cfg.Monitor.HistoryRetention > 0 {
		g.Go(func() error {
			s.PruneLoop(ctx)
			return nil
		})
	}

	s.log.Info().Msgf("monitoring process %q", s.cfg.Monitor.ProcessName)

	return g.Wait()
}

// Ingest feeds the configured log source into the registry. Without a log
// source it waits for ctx so the other loops keep running.
func (s *Service) Ingest(ctx context.Context) error {
	switch s.cfg.Monitor.LogFile {
	case "":
		s.log.Warn().Msg("no log file configured, task tracking disabled")
		<-ctx.Done()
		return nil

	case "-":
		s.log.Info().Msg("reading worker log from stdin")
		if err := logsource.Scan(ctx, s.stdin, s.HandleLine); err != nil {
			return errors.Wrap(err, "log ingest failed")
		}
		// stdin closed, keep serving what we have
		<-ctx.Done()
		return nil

	default:
		s.log.Info().Msgf("following worker log %s", s.cfg.Monitor.LogFile)
		f := logsource.NewFollower(s.cfg.Monitor.LogFile, s.cfg.Monitor.LogFromStart, s.cfg.Monitor.FollowPollPeriod)
		if err := f.Run(ctx, s.HandleLine); err != nil {
			return errors.Wrap(err, "log ingest failed")
		}
		return nil
	}
}

// HandleLine classifies one line outside of any lock and applies the result.
func (s *Service) HandleLine(line string) {
	s.logs.Add(line)

	ev, ok := classifier.Classify(line)

	applied := false
	if ok {
		applied = s.registry.Apply(ev)
	}

	s.metrics.ObserveLine(ev, ok, applied)

	if applied && ev.Kind == task.Terminal {
		s.archive(ev.Filename)
	}
}

func (s *Service) archive(filename string) {
	if s.history == nil {
		return
	}

	t, ok := s.registry.FindByFilename(filename)
	if !ok {
		return
	}

	if err := s.history.Record(context.Background(), t, s.now()); err != nil {
		s.log.Error().Err(err).Msgf("could not archive task %s", t.ID)
	}
}

// PruneLoop drops archived tasks older than the retention once an hour.
func (s *Service) PruneLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		s.prune(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) prune(ctx context.Context) {
	n, err := s.history.Prune(ctx, s.now().Add(-s.cfg.Monitor.HistoryRetention))
	if err != nil {
		s.log.Error().Err(err).Msg("could not prune task history")
		return
	}
	if n > 0 {
		s.log.Debug().Msgf("pruned %d archived tasks", n)
	}
}

func (s *Service) SampleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Monitor.SampleInterval)
	defer ticker.Stop()

	s.Sample()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample takes one reading of every counter. A failed reading skips its
// streams for this tick and the sampler keeps the last speed.
func (s *Service) Sample() {
	now := s.now()

	s.sampleProcess(now)
	s.sampleNetwork(now)
	s.sampleDisk()

	for key, st := range s.sampler.Snapshot() {
		s.metrics.SetStream(key, st.Speed, st.Total)
	}
}

func (s *Service) sampleProcess(now time.Time) {
	s.mu.RLock()
	last := s.process
	s.mu.RUnlock()

	pc, err := s.readProcess(last)
	if err != nil {
		if !errors.Is(err, stats.ErrProcessNotFound) {
			s.log.Debug().Err(err).Msg("could not read worker process")
			s.metrics.SampleError("process")
		}
		s.setProcess(processInfo{pid: last.pid})
		return
	}

	lastPid := last.pid
	if lastPid != 0 && pc.Pid != lastPid {
		s.log.Info().Msgf("worker process changed from pid %d to %d", lastPid, pc.Pid)
		s.sampler.Rebase(StreamProcessRead)
		s.sampler.Rebase(StreamProcessWrite)
		s.sampler.Rebase(StreamProcessCPU)
	}

	s.sampler.Sample(StreamProcessRead, pc.ReadBytes, now)
	s.sampler.Sample(StreamProcessWrite, pc.WriteBytes, now)
	s.sampler.Sample(StreamProcessCPU, pc.CPUTicks, now)

	info := processInfo{
		running: true,
		pid:     pc.Pid,
		rssKb:   pc.RSSKb,
		threads: pc.Threads,
		uptime:  pc.Uptime,
	}

	if mem, err := s.reader.Memory(); err == nil {
		info.memPct = stats.MemUsedPercent(pc.RSSKb, mem)
	}

	s.setProcess(info)
}

// readProcess reuses the last known pid while it still belongs to the worker
// and only scans procfs when it does not.
func (s *Service) readProcess(last processInfo) (*stats.ProcessCounters, error) {
	if pid := s.cfg.Monitor.Pid; pid != 0 {
		return s.reader.Process(pid)
	}

	if last.running {
		pc, err := s.reader.Process(last.pid)
		if err == nil && stats.MatchName(pc.Name, s.cfg.Monitor.ProcessName) {
			return pc, nil
		}
	}

	pid, err := s.reader.FindProcess(s.cfg.Monitor.ProcessName)
	if err != nil {
		return nil, err
	}

	return s.reader.Process(pid)
}

func (s *Service) setProcess(p processInfo) {
	s.mu.Lock()
	s.process = p
	s.mu.Unlock()

	s.metrics.SetProcessUp(p.running)
}

func (s *Service) sampleNetwork(now time.Time) {
	nc, err := s.reader.Network()
	if err != nil {
		s.log.Debug().Err(err).Msg("could not read network counters")
		s.metrics.SampleError("network")
		return
	}

	s.sampler.Sample(StreamSystemRx, nc.RxBytes, now)
	s.sampler.Sample(StreamSystemTx, nc.TxBytes, now)
}

func (s *Service) sampleDisk() {
	if s.cfg.Monitor.StoragePath == "" {
		return
	}

	du, err := diskusage.New(s.cfg.Monitor.StoragePath)
	if err != nil {
		s.log.Debug().Err(err).Msg("could not read disk usage")
		s.metrics.SampleError("disk")
		return
	}

	r := du.Report()

	s.mu.Lock()
	s.disk = &r
	s.mu.Unlock()
}

// RefreshLoop runs scheduled task expiry and refreshes task gauges.
func (s *Service) RefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Monitor.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

func (s *Service) Refresh() {
	if n := s.registry.ExpireDue(s.now()); n > 0 {
		s.metrics.AddExpired(n)
		s.log.Debug().Msgf("expired %d finished tasks", n)
	}

	snap := s.registry.Snapshot()
	s.metrics.SetTasks(snap.Tasks, snap.Active)
}

func (s *Service) Status() Status {
	s.mu.RLock()
	p := s.process
	disk := s.disk
	s.mu.RUnlock()

	snap := s.registry.Snapshot()

	st := buildStatus(p, s.sampler.Snapshot(), runtime.NumCPU(), s.now())
	st.Disk = disk
	st.ActiveTasks = snap.Active
	st.TaskCount = snap.Count

	return st
}
