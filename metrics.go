package annstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordUpsert is called after each AddOrUpdate. applied counts vectors
	// written, dropped those filtered for a wrong dimension.
	RecordUpsert(applied, dropped int, duration time.Duration, err error)

	// RecordRebuild is called after each Rebuild.
	RecordRebuild(included int, duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// retried reports whether the wider search breadth was needed.
	RecordSearch(k int, retried bool, duration time.Duration, err error)

	// RecordDelete is called after each Delete.
	RecordDelete(deleted int, duration time.Duration, err error)

	// RecordGrow is called when an index is resized.
	RecordGrow(from, to int)

	// RecordSave is called after a snapshot has been written.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after a snapshot has been read.
	RecordLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordRebuild(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordSearch(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordGrow(int, int)                          {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error)       {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)              {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	UpsertCount      atomic.Int64
	UpsertErrors     atomic.Int64
	UpsertApplied    atomic.Int64
	UpsertDropped    atomic.Int64
	RebuildCount     atomic.Int64
	RebuildErrors    atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchRetries    atomic.Int64
	SearchTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	GrowCount        atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveBytes        atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
}

// RecordUpsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpsert(applied, dropped int, _ time.Duration, err error) {
	b.UpsertCount.Add(1)
	b.UpsertApplied.Add(int64(applied))
	b.UpsertDropped.Add(int64(dropped))
	if err != nil {
		b.UpsertErrors.Add(1)
	}
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(_ int, _ time.Duration, err error) {
	b.RebuildCount.Add(1)
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, retried bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if retried {
		b.SearchRetries.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrow(int, int) {
	b.GrowCount.Add(1)
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(bytes)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		UpsertCount:    b.UpsertCount.Load(),
		UpsertErrors:   b.UpsertErrors.Load(),
		UpsertApplied:  b.UpsertApplied.Load(),
		UpsertDropped:  b.UpsertDropped.Load(),
		RebuildCount:   b.RebuildCount.Load(),
		RebuildErrors:  b.RebuildErrors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchRetries:  b.SearchRetries.Load(),
		SearchAvgNanos: b.getAvgSearchNanos(),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		GrowCount:      b.GrowCount.Load(),
		SaveCount:      b.SaveCount.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		SaveBytes:      b.SaveBytes.Load(),
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	UpsertCount    int64
	UpsertErrors   int64
	UpsertApplied  int64
	UpsertDropped  int64
	RebuildCount   int64
	RebuildErrors  int64
	SearchCount    int64
	SearchErrors   int64
	SearchRetries  int64
	SearchAvgNanos int64
	DeleteCount    int64
	DeleteErrors   int64
	GrowCount      int64
	SaveCount      int64
	SaveErrors     int64
	SaveBytes      int64
	LoadCount      int64
	LoadErrors     int64
}
