package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

const (
	metricItemsTotal        = "prescan.items.total"
	metricBytesTotal        = "prescan.bytes.total"
	metricIssuesTotal       = "prescan.issues.total"
	metricEnumErrorsTotal   = "prescan.enumeration.errors.total"
	metricCheckpointsTotal  = "prescan.checkpoints.total"
	metricCheckpointSeconds = "prescan.checkpoint.duration.seconds"
	metricScansTotal        = "prescan.scans.total"
	metricScanSeconds       = "prescan.scan.duration.seconds"

	attrType     = "type"
	attrSeverity = "severity"
	attrKind     = "kind"
	attrStatus   = "status"

	statusOK    = "ok"
	statusError = "error"
)

// checkpointBucketBoundaries covers 1ms to 10s for single record writes.
var checkpointBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}

// scanBucketBoundaries covers 1s to 24h; large shares take hours.
var scanBucketBoundaries = []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200, 14400, 43200, 86400}

// ScanMetrics holds the OTel instruments of a scan. A nil *ScanMetrics
// records nothing.
type ScanMetrics struct {
	items         metric.Int64Counter
	bytes         metric.Int64Counter
	issues        metric.Int64Counter
	enumErrors    metric.Int64Counter
	checkpoints   metric.Int64Counter
	checkpointDur metric.Float64Histogram
	scans         metric.Int64Counter
	scanDur       metric.Float64Histogram
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &ScanMetrics{
		items:         b.counter(metricItemsTotal, "Items enumerated", "{item}"),
		bytes:         b.counter(metricBytesTotal, "Bytes of enumerated files", "By"),
		issues:        b.counter(metricIssuesTotal, "Issues found by severity and kind", "{issue}"),
		enumErrors:    b.counter(metricEnumErrorsTotal, "Entries that could not be read", "{error}"),
		checkpoints:   b.counter(metricCheckpointsTotal, "Checkpoint writes by status", "{checkpoint}"),
		checkpointDur: b.histogram(metricCheckpointSeconds, "Checkpoint write duration in seconds", "s", checkpointBucketBoundaries...),
		scans:         b.counter(metricScansTotal, "Finished scans by status", "{scan}"),
		scanDur:       b.histogram(metricScanSeconds, "Scan duration in seconds", "s", scanBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordItem counts one enumerated item.
func (sm *ScanMetrics) RecordItem(ctx context.Context, item *model.Item) {
	if sm == nil {
		return
	}

	kind := "file"
	if item.IsDir {
		kind = "folder"
	}

	sm.items.Add(ctx, 1, metric.WithAttributes(attribute.String(attrType, kind)))

	if !item.IsDir {
		sm.bytes.Add(ctx, item.Size)
	}
}

// RecordIssues counts the issues of one item.
func (sm *ScanMetrics) RecordIssues(ctx context.Context, issues []model.Issue) {
	if sm == nil {
		return
	}

	for i := range issues {
		sm.issues.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrSeverity, string(issues[i].Severity)),
			attribute.String(attrKind, string(issues[i].Kind)),
		))
	}
}

// RecordEnumerationError counts one unreadable entry.
func (sm *ScanMetrics) RecordEnumerationError(ctx context.Context) {
	if sm == nil {
		return
	}

	sm.enumErrors.Add(ctx, 1)
}

// RecordCheckpoint records one checkpoint write attempt.
func (sm *ScanMetrics) RecordCheckpoint(ctx context.Context, d time.Duration, err error) {
	if sm == nil {
		return
	}

	status := statusOK
	if err != nil {
		status = statusError
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	sm.checkpoints.Add(ctx, 1, attrs)
	sm.checkpointDur.Record(ctx, d.Seconds(), attrs)
}

// RecordScan records a finished scan.
func (sm *ScanMetrics) RecordScan(ctx context.Context, status model.ScanStatus, d time.Duration) {
	if sm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, string(status)))
	sm.scans.Add(ctx, 1, attrs)
	sm.scanDur.Record(ctx, d.Seconds(), attrs)
}
