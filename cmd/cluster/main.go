// Command cluster runs the coincidence cluster process: it ingests raw
// detector hits and location updates, classifies station reliability,
// groups hits into multi-station events, records per-pair timing
// histograms, and periodically reports cluster-wide statistics (§1, §5).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/muonpi/clusterproc/internal/coincidence"
	"github.com/muonpi/clusterproc/internal/config"
	"github.com/muonpi/clusterproc/internal/fsutil"
	"github.com/muonpi/clusterproc/internal/ingress"
	"github.com/muonpi/clusterproc/internal/messages"
	"github.com/muonpi/clusterproc/internal/monitoring"
	"github.com/muonpi/clusterproc/internal/recorder"
	"github.com/muonpi/clusterproc/internal/sink"
	"github.com/muonpi/clusterproc/internal/station"
	"github.com/muonpi/clusterproc/internal/statesupervisor"
	"github.com/muonpi/clusterproc/internal/timebase"
	"github.com/muonpi/clusterproc/internal/timeutil"
	"github.com/muonpi/clusterproc/internal/version"
	"github.com/muonpi/clusterproc/internal/worker"
)

var (
	help       = flag.Bool("help", false, "print usage and exit")
	debug      = flag.Bool("debug", false, "enable debug logging")
	verbose    = flag.Int("verbose", 0, "verbose logging level")
	offline    = flag.Bool("offline", false, "run without any external broker, publishing to the log only")
	local      = flag.Bool("local", false, "use the in-process message bus instead of a real broker")
	configPath = flag.String("config", "", "path to a cluster configuration JSON file")
)

func loadConfig() (*config.ClusterConfig, error) {
	if *configPath == "" {
		return config.Defaults(), nil
	}
	return config.LoadClusterConfig(*configPath)
}

func stationConfig(cfg *config.ClusterConfig) station.Config {
	d := station.DefaultConfig()
	d.Hysteresis = *cfg.ReliabilityHysteresis
	d.MissedLogInterval = cfg.MissedLogIntervalDuration()
	d.DeletionInterval = 3 * d.MissedLogInterval
	d.DetectorSummaryInterval = cfg.DetectorSummaryIntervalDuration()
	return d
}

func timebaseConfig(cfg *config.ClusterConfig) timebase.Config {
	return timebase.Config{
		SampleWindow: cfg.TimebaseSampleWindowDuration(),
		Min:          cfg.TimebaseMinDuration(),
		Max:          cfg.TimebaseMaxDuration(),
	}
}

func recorderConfig(cfg *config.ClusterConfig) recorder.Config {
	c := recorder.DefaultConfig(*cfg.Histogram)
	c.HistogramSampleTime = cfg.HistogramSampleTimeDuration()
	return c
}

// parseTopic splits a message topic into the username/station_id the
// ingress payloads are keyed by (§6: "<base>/<kind>/<username>/<station_id>[/…]").
func parseTopic(topic []string) (messages.UserInfo, error) {
	if len(topic) < 4 {
		return messages.UserInfo{}, fmt.Errorf("cluster: topic %q too short", strings.Join(topic, "/"))
	}
	return messages.UserInfo{Username: topic[2], StationID: topic[3]}, nil
}

// runIngressHits drives the bounded suspend/drain/tick worker loop (§5) over
// the "hits" topic, parsing each payload and forwarding it to the pipeline.
func runIngressHits(ctx context.Context, bus ingress.Subscriber, pollWait time.Duration, out chan<- messages.Hit) error {
	ch, err := bus.Subscribe(ctx, "hits")
	if err != nil {
		return fmt.Errorf("cluster: subscribing to hits: %w", err)
	}
	defer bus.Unsubscribe("hits")

	worker.Loop(ctx, timeutil.RealClock{}, ch, pollWait, func(msg ingress.Message) {
		userInfo, err := parseTopic(msg.Topic)
		if err != nil {
			monitoring.Logf("cluster: %v", err)
			return
		}
		hit, err := ingress.ParseSingleHit(userInfo, msg.Payload)
		if err != nil {
			monitoring.Logf("cluster: %v", err)
			return
		}
		select {
		case out <- hit:
		case <-ctx.Done():
		}
	}, func() {}, nil)
	return nil
}

// runIngressLocation drives the same worker loop over the "location" topic,
// aggregating the six required keys per msg_id and expiring stale partial
// records on every tick (§6).
func runIngressLocation(ctx context.Context, bus ingress.Subscriber, pollWait time.Duration, out chan<- ingress.LocationUpdate) error {
	ch, err := bus.Subscribe(ctx, "location")
	if err != nil {
		return fmt.Errorf("cluster: subscribing to location: %w", err)
	}
	defer bus.Unsubscribe("location")

	aggregator := ingress.NewLocationAggregator()
	worker.Loop(ctx, timeutil.RealClock{}, ch, pollWait, func(msg ingress.Message) {
		userInfo, err := parseTopic(msg.Topic)
		if err != nil {
			monitoring.Logf("cluster: %v", err)
			return
		}
		update, complete, err := aggregator.Add(time.Now(), userInfo, msg.Payload)
		if err != nil {
			monitoring.Logf("cluster: %v", err)
			return
		}
		if !complete {
			return
		}
		select {
		case out <- update:
		case <-ctx.Done():
		}
	}, func() {
		aggregator.Expire(time.Now())
	}, nil)
	return nil
}

// runIngressComposite drives the same worker loop over the "l1data" topic,
// assembling the n rows of each L1-composite-hit group (sharing a common
// ingest key, §6) into one multi-hit Event before forwarding it to the
// pipeline.
func runIngressComposite(ctx context.Context, bus ingress.Subscriber, pollWait time.Duration, out chan<- messages.Event) error {
	ch, err := bus.Subscribe(ctx, "l1data")
	if err != nil {
		return fmt.Errorf("cluster: subscribing to l1data: %w", err)
	}
	defer bus.Unsubscribe("l1data")

	aggregator := ingress.NewCompositeAggregator()
	worker.Loop(ctx, timeutil.RealClock{}, ch, pollWait, func(msg ingress.Message) {
		userInfo, err := parseTopic(msg.Topic)
		if err != nil {
			monitoring.Logf("cluster: %v", err)
			return
		}
		event, complete, err := aggregator.Add(time.Now(), userInfo, msg.Payload)
		if err != nil {
			monitoring.Logf("cluster: %v", err)
			return
		}
		if !complete {
			return
		}
		select {
		case out <- event:
		case <-ctx.Done():
		}
	}, func() {
		aggregator.Expire(time.Now())
	}, nil)
	return nil
}

// pipeline owns every mutable piece of cluster state and drives it from a
// single goroutine, so none of the component types need their own locking
// (§5: "the state supervisor is the only worker reading shared counters").
type pipeline struct {
	stations  *station.Supervisor
	filter    *coincidence.Filter
	tb        *timebase.Supervisor
	rec       *recorder.Supervisor
	pub       sink.EventPublisher
	detectors sink.DetectorPublisher
	counters  *statesupervisor.Counters
}

// drainStationSideEffects publishes every trigger/summary the station
// supervisor has produced since the last drain, common to both the
// single-hit and composite-event paths.
func (p *pipeline) drainStationSideEffects(ctx context.Context, now time.Time) {
	for _, t := range p.stations.TakeTriggers() {
		if err := p.detectors.PublishTrigger(ctx, t); err != nil {
			monitoring.Logf("cluster: publishing trigger: %v", err)
		}
		switch t.Status {
		case messages.Reliable, messages.Unreliable:
			p.rec.StatusChanged(t.UserInfo.Hash(), t.Status, now)
		case messages.Deleted:
			p.rec.Remove(t.UserInfo.Hash())
		}
	}
	for _, s := range p.stations.TakeSummaries() {
		if err := p.detectors.PublishSummary(ctx, s); err != nil {
			monitoring.Logf("cluster: publishing summary: %v", err)
		}
	}
}

func (p *pipeline) handleHit(ctx context.Context, hit messages.Hit, now time.Time) {
	p.stations.Hit(hit, now)
	p.drainStationSideEffects(ctx, now)
	for _, forwarded := range p.stations.TakeForwarded() {
		p.counters.IncomingHit()
		p.tb.Observe(forwarded, now)
		p.filter.Add(forwarded, now)
	}
}

// handleCompositeEvent runs every row of an assembled L1-composite-hit
// group through the station supervisor individually, so reliability gating
// and trigger/summary emission apply exactly as for any other hit, then
// feeds the rows that survive forwarding into the filter as one
// pre-combined candidate Event (rather than n independent single-hit
// Adds), preserving the group's shared ingest key as a single coincidence
// candidate.
func (p *pipeline) handleCompositeEvent(ctx context.Context, event messages.Event, now time.Time) {
	var forwarded []messages.Hit
	for _, hit := range event.Hits {
		p.stations.Hit(hit, now)
		p.drainStationSideEffects(ctx, now)
		forwarded = append(forwarded, p.stations.TakeForwarded()...)
	}
	if len(forwarded) == 0 {
		return
	}
	for _, h := range forwarded {
		p.counters.IncomingHit()
		p.tb.Observe(h, now)
	}
	candidate := messages.NewEvent(forwarded[0])
	for _, h := range forwarded[1:] {
		candidate.Emplace(h)
	}
	p.filter.AddEvent(candidate, now)
}

func (p *pipeline) step(ctx context.Context, now time.Time, elapsed time.Duration) {
	factor := p.stations.Step(now, elapsed)
	tb := p.tb.Tick(factor)
	p.filter.SetTimebase(tb)
	if err := p.pub.PublishTimebase(ctx, tb); err != nil {
		monitoring.Logf("cluster: publishing timebase: %v", err)
	}

	for _, event := range p.filter.Sweep(now) {
		p.rec.RecordEvent(event)
		p.counters.OutgoingEvent(event.N())
		if err := p.pub.PublishEvent(ctx, event); err != nil {
			monitoring.Logf("cluster: publishing event: %v", err)
		}
	}

	total, reliable := p.stations.Count()
	p.counters.SetDetectorCounts(total, reliable)
	p.counters.SetBufferLength(uint64(p.filter.OpenCount()))
	timeoutMillis := int64(float64(tb.Base) * tb.Factor / 1e6)
	p.counters.SetTimebase(timeoutMillis, tb.Base/1e6)

	if err := p.rec.Snapshot(now); err != nil {
		monitoring.Logf("cluster: snapshotting recorder: %v", err)
	}
}

func runPipeline(ctx context.Context, p *pipeline, stepInterval time.Duration, hitsCh <-chan messages.Hit, compositeCh <-chan messages.Event, locationCh <-chan ingress.LocationUpdate) error {
	ticker := time.NewTicker(stepInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case hit := <-hitsCh:
			p.handleHit(ctx, hit, time.Now())
		case event := <-compositeCh:
			p.handleCompositeEvent(ctx, event, time.Now())
		case update := <-locationCh:
			now := time.Now()
			p.stations.LocationUpdate(update.UserInfo, update.Location, now)
		case now := <-ticker.C:
			p.step(ctx, now, now.Sub(last))
			last = now
		}
	}
}

func run() error {
	flag.Parse()
	if *help {
		flag.Usage()
		return nil
	}
	if *debug || *verbose > 0 {
		monitoring.SetLogger(log.Printf)
	}

	log.Printf("cluster %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("cluster: loading configuration: %w", err)
	}

	var publisher sink.LoggingPublisher = sink.LoggingPublisher{Logf: monitoring.Logf}
	var bus ingress.Subscriber
	if *offline || *local {
		bus = ingress.NewMemoryBus()
	} else {
		return fmt.Errorf("cluster: no external broker wired; run with --offline or --local")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe := statesupervisor.NoopProbe{}
	state, err := statesupervisor.New(ctx, statesupervisor.Config{
		ClusterlogInterval: cfg.ClusterlogIntervalDuration(),
		ResourceSampleTime: cfg.ResourceSampleTimeDuration(),
	}, probe, publisher)
	if err != nil {
		return fmt.Errorf("cluster: creating state supervisor: %w", err)
	}

	p := &pipeline{
		stations:  station.NewSupervisor(stationConfig(cfg)),
		filter:    coincidence.NewFilter(cfg.TimebaseMinDuration()),
		tb:        timebase.NewSupervisor(timebaseConfig(cfg)),
		rec:       recorder.NewSupervisor(recorderConfig(cfg), fsutil.OSFileSystem{}),
		pub:       publisher,
		detectors: publisher,
		counters:  state.Counters(),
	}

	hitsCh := make(chan messages.Hit, *cfg.QueueCapacity)
	compositeCh := make(chan messages.Event, *cfg.QueueCapacity)
	locationCh := make(chan ingress.LocationUpdate, *cfg.QueueCapacity)

	pollWait := cfg.QueuePollWaitDuration()
	state.AddWorker("ingress-hits", func(ctx context.Context) error {
		return runIngressHits(ctx, bus, pollWait, hitsCh)
	})
	state.AddWorker("ingress-composite", func(ctx context.Context) error {
		return runIngressComposite(ctx, bus, pollWait, compositeCh)
	})
	state.AddWorker("ingress-location", func(ctx context.Context) error {
		return runIngressLocation(ctx, bus, pollWait, locationCh)
	})
	state.AddWorker("pipeline", func(ctx context.Context) error {
		return runPipeline(ctx, p, cfg.StepIntervalDuration(), hitsCh, compositeCh, locationCh)
	})

	if err := state.Start(); err != nil {
		return fmt.Errorf("cluster: starting state supervisor: %w", err)
	}

	err = state.Wait()
	state.Shutdown()
	if err != nil && ctx.Err() == nil {
		return err
	}
	log.Printf("cluster shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Printf("cluster: %v", err)
		os.Exit(1)
	}
}
