// Package sink defines the outgoing-message contracts the cluster's
// workers publish through. A concrete MQTT/database/metrics client is an
// external collaborator out of scope for this repository (§1); only the
// interface the cluster code depends on lives here.
package sink

import (
	"context"

	"github.com/muonpi/clusterproc/internal/messages"
)

// EventPublisher delivers finalized, coincidence-filtered Events and the
// resulting Timebase updates to whatever outbound transport is configured.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e messages.Event) error
	PublishTimebase(ctx context.Context, tb messages.Timebase) error
}

// DetectorPublisher delivers station lifecycle and statistics records.
type DetectorPublisher interface {
	PublishTrigger(ctx context.Context, t messages.DetectorTrigger) error
	PublishSummary(ctx context.Context, s messages.DetectorSummary) error
}

// ClusterLogPublisher delivers the state supervisor's periodic cluster-wide
// statistics record (§4.5, §6).
type ClusterLogPublisher interface {
	PublishClusterLog(ctx context.Context, l messages.ClusterLog) error
}

// LoggingPublisher implements EventPublisher, DetectorPublisher and
// ClusterLogPublisher by logging through internal/monitoring. Useful for
// the --offline and --local CLI modes where no external broker is wired.
type LoggingPublisher struct {
	Logf func(format string, v ...interface{})
}

func (p LoggingPublisher) PublishEvent(_ context.Context, e messages.Event) error {
	p.Logf("event: n=%d conflict=%v weight=%d start=%d end=%d", e.N(), e.Conflict, e.Weight, e.Start(), e.End())
	return nil
}

func (p LoggingPublisher) PublishTimebase(_ context.Context, tb messages.Timebase) error {
	p.Logf("timebase: base=%dns factor=%.3f", tb.Base, tb.Factor)
	return nil
}

func (p LoggingPublisher) PublishTrigger(_ context.Context, t messages.DetectorTrigger) error {
	p.Logf("trigger: %s", t.String())
	return nil
}

func (p LoggingPublisher) PublishSummary(_ context.Context, s messages.DetectorSummary) error {
	p.Logf("summary: %s active=%v rate=%.3f±%.3f", s.UserInfo.SiteID(), s.Active, s.MeanEventRate, s.StdDevEventRate)
	return nil
}

func (p LoggingPublisher) PublishClusterLog(_ context.Context, l messages.ClusterLog) error {
	p.Logf("clusterlog: detectors=%d/%d reliable buffer=%d in=%.3f out=%.3f", l.ReliableDetectors, l.TotalDetectors, l.BufferLength, l.FrequencyIn, l.FrequencyOut)
	return nil
}
