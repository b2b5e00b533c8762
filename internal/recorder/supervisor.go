// Package recorder implements the station-pair coincidence recorder
// (§4.3): one time-difference histogram per ordered detector pair, grown
// and shrunk as stations come online/offline, periodically snapshotted to
// disk alongside an adjacency matrix.
package recorder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/muonpi/clusterproc/internal/fsutil"
	"github.com/muonpi/clusterproc/internal/messages"
)

// Config holds the recorder's tunables (§4.3).
type Config struct {
	DataDir             string
	HistogramSampleTime time.Duration
}

// DefaultConfig returns the spec's default: snapshot every 24h.
func DefaultConfig(dataDir string) Config {
	return Config{DataDir: dataDir, HistogramSampleTime: 24 * time.Hour}
}

// Supervisor accumulates per-pair time-difference histograms from emitted
// Events and station status transitions, and periodically snapshots them.
type Supervisor struct {
	cfg Config
	fs  fsutil.FileSystem

	matrix       *stationMatrix
	lastSnapshot time.Time
}

// NewSupervisor creates a station-pair recorder.
func NewSupervisor(cfg Config, fs fsutil.FileSystem) *Supervisor {
	return &Supervisor{cfg: cfg, fs: fs, matrix: newStationMatrix()}
}

// RecordEvent folds one emitted composite Event's constituent pairs into
// their histograms (§4.3 "On each emitted composite event").
func (s *Supervisor) RecordEvent(e messages.Event) {
	if e.N() < 2 {
		return
	}
	for i := 0; i < len(e.Hits); i++ {
		for j := i + 1; j < len(e.Hits); j++ {
			s.recordPair(e.Hits[i], e.Hits[j])
		}
	}
}

// recordPair admits both stations if necessary and adds the lower-hash
// station's start minus the higher-hash station's start into the pair's
// histogram (§4.3 step 1-2).
func (s *Supervisor) recordPair(h1, h2 messages.Hit) {
	lo, hi := h1, h2
	if lo.Hash > hi.Hash {
		lo, hi = hi, lo
	}
	a := s.matrix.admit(lo.Hash, lo.UserInfo.SiteID(), lo.Location)
	b := s.matrix.admit(hi.Hash, hi.UserInfo.SiteID(), hi.Location)
	s.matrix.pair(a, b).Add(float64(lo.Start - hi.Start))
}

// StatusChanged applies a station's Reliable/Unreliable status transition
// to every already-seeded pair it participates in (§4.3 "On a station
// status transition"). Stations that have never participated in an event
// (and so were never admitted) are silently ignored.
func (s *Supervisor) StatusChanged(hash uint64, status messages.Status, now time.Time) {
	i, ok := s.matrix.indexOf(hash)
	if !ok {
		return
	}
	for x := 0; x < s.matrix.count(); x++ {
		if x == i {
			continue
		}
		hist := s.matrix.histogramAt(i, x)
		if hist == nil {
			continue
		}
		switch status {
		case messages.Reliable:
			hist.MarkOnline(now)
		case messages.Unreliable:
			hist.MarkOffline(now)
		}
	}
}

// Remove drops a station from the matrix entirely, used when a station is
// Deleted (§4.1's terminal state): its pairs are no longer tracked.
func (s *Supervisor) Remove(hash uint64) {
	s.matrix.remove(hash)
}

// sanitizeSiteID replaces path separators so a site id is safe to use as a
// directory component (§4.3 "forward-slash replacement in site IDs").
func sanitizeSiteID(id string) string {
	return strings.ReplaceAll(id, "/", "-")
}

func hoursSinceEpoch(now time.Time) int64 {
	return now.Unix() / 3600
}

// Snapshot writes the periodic `.stations`, per-pair `.hist`/`.meta`, and
// `.adj` files, then resets every histogram (§4.3 "Snapshot"). It refuses
// to run if less than 0.9 of the configured period has elapsed since the
// last snapshot.
func (s *Supervisor) Snapshot(now time.Time) error {
	if !s.lastSnapshot.IsZero() && now.Sub(s.lastSnapshot) < time.Duration(0.9*float64(s.cfg.HistogramSampleTime)) {
		return nil
	}

	if err := s.fs.MkdirAll(s.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("recorder: creating data dir: %w", err)
	}

	filename := strconv.FormatInt(hoursSinceEpoch(now), 10)

	if err := s.writeStations(filename); err != nil {
		return err
	}
	if err := s.writePairs(filename, now); err != nil {
		return err
	}
	if err := s.writeAdjacency(filename); err != nil {
		return err
	}

	s.lastSnapshot = now
	return nil
}

func (s *Supervisor) writeStations(filename string) error {
	var b strings.Builder
	s.matrix.each(func(st stationEntry) {
		fmt.Fprintf(&b, "%d;%s;%f;%f;%f\n", st.Hash, st.SiteID, st.Location.Latitude, st.Location.Longitude, st.Location.Height)
	})
	path := filepath.Join(s.cfg.DataDir, filename+".stations")
	return s.fs.WriteFile(path, []byte(b.String()), 0o644)
}

func (s *Supervisor) writePairs(filename string, now time.Time) error {
	n := s.matrix.count()
	for x := 1; x < n; x++ {
		for y := 0; y < x; y++ {
			hist := s.matrix.histogramAt(x, y)
			if hist == nil {
				continue
			}
			hist.FoldUptime(now)

			pairDir := filepath.Join(s.cfg.DataDir,
				sanitizeSiteID(s.matrix.stations[x].SiteID)+"_"+sanitizeSiteID(s.matrix.stations[y].SiteID))
			if err := s.fs.MkdirAll(pairDir, 0o755); err != nil {
				return fmt.Errorf("recorder: creating pair dir: %w", err)
			}

			var histLines strings.Builder
			for i, count := range hist.Hist.Bins() {
				fmt.Fprintf(&histLines, "%f %d\n", hist.Hist.Midpoint(i), count)
			}
			if err := s.fs.WriteFile(filepath.Join(pairDir, filename+".hist"), []byte(histLines.String()), 0o644); err != nil {
				return fmt.Errorf("recorder: writing histogram: %w", err)
			}

			meta := fmt.Sprintf("bin_width %f\ndistance %f\nintegral %d\nuptime %f\nsample_time %d\n",
				hist.Hist.Width(), hist.Distance, hist.Hist.Integral(), hist.UptimeMinutes, now.Unix())
			if err := s.fs.WriteFile(filepath.Join(pairDir, filename+".meta"), []byte(meta), 0o644); err != nil {
				return fmt.Errorf("recorder: writing meta: %w", err)
			}

			hist.ResetAfterSnapshot()
		}
	}
	return nil
}

func (s *Supervisor) writeAdjacency(filename string) error {
	n := s.matrix.count()
	var b strings.Builder
	s.matrix.each(func(st stationEntry) {
		fmt.Fprintf(&b, "%d ", st.Hash)
	})
	b.WriteByte('\n')
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			var integral uint64
			if x != y {
				if hist := s.matrix.histogramAt(x, y); hist != nil {
					integral = hist.Hist.Integral()
				}
			}
			fmt.Fprintf(&b, "%d ", integral)
		}
		b.WriteByte('\n')
	}
	path := filepath.Join(s.cfg.DataDir, filename+".adj")
	return s.fs.WriteFile(path, []byte(b.String()), 0o644)
}

// StationCount returns the number of stations currently admitted into the
// matrix, surfaced for diagnostics.
func (s *Supervisor) StationCount() int {
	return s.matrix.count()
}
