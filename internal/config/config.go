// Package config loads and validates cluster tuning parameters.
//
// The schema mirrors the CLI's --config flag: every field is a pointer so a
// partial JSON document can override only the values it names, with the rest
// falling back to Defaults().
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ClusterConfig holds every tunable named in the component design.
type ClusterConfig struct {
	// Station supervisor (§4.1)
	MaxTimeAccuracyNanos    *int64   `json:"max_time_accuracy_nanos,omitempty"`
	ExtremeAccuracyFactor   *float64 `json:"extreme_accuracy_factor,omitempty"`
	ReliabilityHysteresis   *float64 `json:"reliability_hysteresis,omitempty"`
	MissedLogInterval       *string  `json:"missed_log_interval,omitempty"`       // e.g. "90s"
	DetectorSummaryInterval *string  `json:"detectorsummary_interval,omitempty"`  // e.g. "60s"
	StepInterval            *string  `json:"step_interval,omitempty"`             // e.g. "100ms"

	// Timebase supervisor (§4.2)
	TimebaseSampleWindow *string `json:"timebase_sample_window,omitempty"` // e.g. "2s"
	TimebaseMin          *string `json:"timebase_min,omitempty"`           // e.g. "800ms"
	TimebaseMax          *string `json:"timebase_max,omitempty"`           // e.g. "2m"

	// Station-pair recorder (§4.3)
	Histogram           *string `json:"histogram,omitempty"` // data directory, default "data"
	HistogramBins       *int    `json:"histogram_bins,omitempty"`
	HistogramTotalWidth *string `json:"histogram_total_width,omitempty"` // e.g. "200us"
	HistogramSampleTime *string `json:"histogram_sample_time,omitempty"` // e.g. "24h"

	// State supervisor (§4.5)
	ClusterlogInterval *string `json:"clusterlog_interval,omitempty"`
	ResourceSampleTime *string `json:"resource_sample_time,omitempty"` // e.g. "30s"

	// Worker queues (§5)
	QueueCapacity   *int    `json:"queue_capacity,omitempty"`
	QueuePollWait   *string `json:"queue_poll_wait,omitempty"` // e.g. "100ms"
}

// Defaults returns a ClusterConfig with every field populated from
// spec-mandated defaults.
func Defaults() *ClusterConfig {
	return &ClusterConfig{
		MaxTimeAccuracyNanos:    ptrInt64(1000),
		ExtremeAccuracyFactor:   ptrFloat64(100),
		ReliabilityHysteresis:  ptrFloat64(0.15),
		MissedLogInterval:      ptrString("90s"),
		DetectorSummaryInterval: ptrString("60s"),
		StepInterval:           ptrString("100ms"),

		TimebaseSampleWindow: ptrString("2s"),
		TimebaseMin:          ptrString("800ms"),
		TimebaseMax:          ptrString("2m"),

		Histogram:           ptrString("data"),
		HistogramBins:       ptrInt(2000),
		HistogramTotalWidth: ptrString("200us"),
		HistogramSampleTime: ptrString("24h"),

		ClusterlogInterval: ptrString("60s"),
		ResourceSampleTime: ptrString("30s"),

		QueueCapacity: ptrInt(1024),
		QueuePollWait: ptrString("100ms"),
	}
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// LoadClusterConfig reads a JSON document at path and merges it over
// Defaults(). The path must have a .json extension and be no larger than
// 1MB, matching the validation the teacher applies to its own tuning file.
func LoadClusterConfig(path string) (*ClusterConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every set duration/size field actually parses and
// falls within a sane range. Clamping to the spec's hard bounds (e.g.
// timebase [800ms, 2min]) happens at the call site, not here.
func (c *ClusterConfig) Validate() error {
	for name, val := range map[string]*string{
		"missed_log_interval":       c.MissedLogInterval,
		"detectorsummary_interval":  c.DetectorSummaryInterval,
		"step_interval":             c.StepInterval,
		"timebase_sample_window":    c.TimebaseSampleWindow,
		"timebase_min":              c.TimebaseMin,
		"timebase_max":              c.TimebaseMax,
		"histogram_total_width":     c.HistogramTotalWidth,
		"histogram_sample_time":     c.HistogramSampleTime,
		"clusterlog_interval":       c.ClusterlogInterval,
		"resource_sample_time":      c.ResourceSampleTime,
		"queue_poll_wait":           c.QueuePollWait,
	} {
		if val == nil || *val == "" {
			continue
		}
		if _, err := time.ParseDuration(*val); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, *val, err)
		}
	}
	if c.HistogramBins != nil && *c.HistogramBins <= 0 {
		return fmt.Errorf("histogram_bins must be positive, got %d", *c.HistogramBins)
	}
	if c.QueueCapacity != nil && *c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", *c.QueueCapacity)
	}
	return nil
}

func mustParseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: invalid duration %q: %v", s, err))
	}
	return d
}

// MissedLogIntervalDuration returns the parsed missed-log interval.
func (c *ClusterConfig) MissedLogIntervalDuration() time.Duration {
	return mustParseDuration(*c.MissedLogInterval)
}

// DetectorSummaryIntervalDuration returns the parsed detector-summary interval.
func (c *ClusterConfig) DetectorSummaryIntervalDuration() time.Duration {
	return mustParseDuration(*c.DetectorSummaryInterval)
}

// StepIntervalDuration returns the parsed per-step tick interval.
func (c *ClusterConfig) StepIntervalDuration() time.Duration {
	return mustParseDuration(*c.StepInterval)
}

// TimebaseSampleWindowDuration returns the parsed timebase sampling window.
func (c *ClusterConfig) TimebaseSampleWindowDuration() time.Duration {
	return mustParseDuration(*c.TimebaseSampleWindow)
}

// TimebaseMinDuration returns the parsed minimum timebase.
func (c *ClusterConfig) TimebaseMinDuration() time.Duration {
	return mustParseDuration(*c.TimebaseMin)
}

// TimebaseMaxDuration returns the parsed maximum timebase.
func (c *ClusterConfig) TimebaseMaxDuration() time.Duration {
	return mustParseDuration(*c.TimebaseMax)
}

// HistogramSampleTimeDuration returns the parsed snapshot period.
func (c *ClusterConfig) HistogramSampleTimeDuration() time.Duration {
	return mustParseDuration(*c.HistogramSampleTime)
}

// ClusterlogIntervalDuration returns the parsed cluster-log emission interval.
func (c *ClusterConfig) ClusterlogIntervalDuration() time.Duration {
	return mustParseDuration(*c.ClusterlogInterval)
}

// ResourceSampleTimeDuration returns the parsed resource-sampling interval.
func (c *ClusterConfig) ResourceSampleTimeDuration() time.Duration {
	return mustParseDuration(*c.ResourceSampleTime)
}

// QueuePollWaitDuration returns the parsed inbound-queue poll wait.
func (c *ClusterConfig) QueuePollWaitDuration() time.Duration {
	return mustParseDuration(*c.QueuePollWait)
}
