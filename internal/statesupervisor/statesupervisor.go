// Package statesupervisor implements the state supervisor (§4.5): it owns
// the process lifecycle, registers every other worker, periodically samples
// process/system resource usage, and emits the cluster-wide ClusterLog.
package statesupervisor

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/muonpi/clusterproc/internal/messages"
	"github.com/muonpi/clusterproc/internal/monitoring"
	"github.com/muonpi/clusterproc/internal/sink"
	"github.com/muonpi/clusterproc/internal/worker"
)

// ResourceProbe samples process/system CPU load and memory usage, the
// external collaborator §4.5 calls "external resource probe".
type ResourceProbe interface {
	Sample() (processCPU, systemCPU, memory float32)
}

// NoopProbe reports zero load, used when no real probe is wired (--offline,
// --local, tests).
type NoopProbe struct{}

func (NoopProbe) Sample() (float32, float32, float32) { return 0, 0, 0 }

// Config holds the state supervisor's tunables (§4.5).
type Config struct {
	ClusterlogInterval time.Duration
	ResourceSampleTime time.Duration
}

// Counters accumulates the running totals a ClusterLog snapshot reports.
// Methods are safe for concurrent use, so updates from any goroutine may
// overlap the state supervisor's reads (§5's shared-resource rule: only the
// state supervisor reads them).
type Counters struct {
	mu                sync.Mutex
	incoming          uint64
	outgoing          map[int]uint64
	maxN              uint64
	bufferLength      uint64
	totalDetectors    uint64
	reliableDetectors uint64
	timeoutMillis     int64
	timebaseMillis    int64
}

// NewCounters creates an empty Counters.
func NewCounters() *Counters {
	return &Counters{outgoing: map[int]uint64{}}
}

// IncomingHit records one ingress hit.
func (c *Counters) IncomingHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incoming++
}

// OutgoingEvent records one emitted Event at the given coincidence level.
func (c *Counters) OutgoingEvent(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outgoing[n]++
	if uint64(n) > c.maxN {
		c.maxN = uint64(n)
	}
}

// SetBufferLength reports the coincidence filter's current open-constructor
// count.
func (c *Counters) SetBufferLength(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bufferLength = n
}

// SetDetectorCounts reports the station supervisor's total/reliable counts.
func (c *Counters) SetDetectorCounts(total, reliable int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalDetectors = uint64(total)
	c.reliableDetectors = uint64(reliable)
}

// SetTimebase reports the filter's current timeout and base in milliseconds.
func (c *Counters) SetTimebase(timeoutMillis, timebaseMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeoutMillis = timeoutMillis
	c.timebaseMillis = timebaseMillis
}

// snapshot builds a ClusterLog from the current counters and resets the
// incoming/outgoing rate counters for the next interval.
func (c *Counters) snapshot(uptime time.Duration, probe ResourceProbe, interval time.Duration) messages.ClusterLog {
	c.mu.Lock()
	defer c.mu.Unlock()

	outgoingCopy := make(map[int]uint64, len(c.outgoing))
	var outgoingTotal uint64
	for level, count := range c.outgoing {
		outgoingCopy[level] = count
		outgoingTotal += count
	}

	seconds := interval.Seconds()
	var freqIn, freqOut float64
	if seconds > 0 {
		freqIn = float64(c.incoming) / seconds
		freqOut = float64(outgoingTotal) / seconds
	}

	processCPU, systemCPU, memory := probe.Sample()

	log := messages.ClusterLog{
		TimeoutMillis:     c.timeoutMillis,
		TimebaseMillis:    c.timebaseMillis,
		UptimeMinutes:     int64(uptime.Minutes()),
		FrequencyIn:       freqIn,
		FrequencyOut:      freqOut,
		Incoming:          c.incoming,
		Outgoing:          outgoingCopy,
		BufferLength:      c.bufferLength,
		TotalDetectors:    c.totalDetectors,
		ReliableDetectors: c.reliableDetectors,
		MaximumN:          c.maxN,
		ProcessCPULoad:    processCPU,
		SystemCPULoad:     systemCPU,
		MemoryUsage:       memory,
	}

	c.incoming = 0
	c.outgoing = map[int]uint64{}
	return log
}

// Supervisor owns the process lifecycle: every worker registered through Add
// runs under its shared context, and a scheduled job periodically samples
// resources and publishes the cluster log.
type Supervisor struct {
	workers  *worker.Supervisor
	counters *Counters
	started  time.Time

	cfg   Config
	probe ResourceProbe
	pub   sink.ClusterLogPublisher

	scheduler gocron.Scheduler
}

// New creates a state supervisor. probe may be NoopProbe{} when no real
// resource sampler is wired.
func New(parent context.Context, cfg Config, probe ResourceProbe, pub sink.ClusterLogPublisher) (*Supervisor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		workers:   worker.NewSupervisor(parent),
		counters:  NewCounters(),
		started:   time.Now(),
		cfg:       cfg,
		probe:     probe,
		pub:       pub,
		scheduler: scheduler,
	}, nil
}

// Context is the shared cancellation context every registered worker
// should select on.
func (s *Supervisor) Context() context.Context { return s.workers.Context() }

// Counters exposes the shared counters every worker reports into.
func (s *Supervisor) Counters() *Counters { return s.counters }

// AddWorker registers a supervised task (§4.5's add_worker). If fn returns
// an error, the rest of the cluster is shut down in turn (§5 cancellation).
func (s *Supervisor) AddWorker(name string, fn func(ctx context.Context) error) {
	s.workers.Add(name, fn)
}

// Start schedules the periodic cluster-log emission and begins running.
func (s *Supervisor) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.ClusterlogInterval),
		gocron.NewTask(s.emitClusterLog),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *Supervisor) emitClusterLog() {
	log := s.counters.snapshot(time.Since(s.started), s.probe, s.cfg.ClusterlogInterval)
	if err := s.pub.PublishClusterLog(s.workers.Context(), log); err != nil {
		monitoring.Logf("statesupervisor: publishing cluster log: %v", err)
	}
}

// Shutdown cancels every registered worker's context and stops the
// scheduler.
func (s *Supervisor) Shutdown() {
	s.workers.Shutdown()
	_ = s.scheduler.Shutdown()
}

// Wait blocks until every registered worker has returned, and returns the
// first non-nil error, if any (§5: "a worker's unexpected termination
// causes the state supervisor to initiate orderly shutdown of the rest").
func (s *Supervisor) Wait() error {
	return s.workers.Wait()
}
