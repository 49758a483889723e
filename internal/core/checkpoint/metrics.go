package checkpoint

import (
	"time"
)

// ledgerRecord holds timing data for an advance.
type ledgerRecord struct {
	LedgerSeq  uint64
	AdvancedAt time.Time
}

// Metrics holds checkpoint progress data.
type Metrics struct {
	LedgersPerSecond float64
	Advances         int
	HighWater        uint64
	LastAdvanceAt    *time.Time
}

// MetricsCollector tracks checkpoint advances over a sliding window.
type MetricsCollector struct {
	windowSize int            // number of advances to track
	records    []ledgerRecord // ring buffer of advance records
	advances   int
	highWater  uint64
}

// NewMetricsCollector creates a collector keeping the last windowSize advances.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize < 2 {
		windowSize = 2
	}
	return &MetricsCollector{
		windowSize: windowSize,
		records:    make([]ledgerRecord, 0, windowSize),
	}
}

// RecordLedger records an advance to ledgerSeq.
func (mc *MetricsCollector) RecordLedger(ledgerSeq uint64, at time.Time) {
	mc.advances++
	if ledgerSeq <= mc.highWater {
		return
	}
	mc.highWater = ledgerSeq

	record := ledgerRecord{LedgerSeq: ledgerSeq, AdvancedAt: at}
	if len(mc.records) >= mc.windowSize {
		// Shift elements left, drop oldest
		copy(mc.records, mc.records[1:])
		mc.records[len(mc.records)-1] = record
	} else {
		mc.records = append(mc.records, record)
	}
}

// HighWater returns the highest ledger recorded.
func (mc *MetricsCollector) HighWater() uint64 {
	return mc.highWater
}

// GetMetrics returns current metrics.
func (mc *MetricsCollector) GetMetrics() Metrics {
	m := Metrics{
		Advances:  mc.advances,
		HighWater: mc.highWater,
	}
	if len(mc.records) > 0 {
		last := mc.records[len(mc.records)-1].AdvancedAt
		m.LastAdvanceAt = &last
	}

	if len(mc.records) >= 2 {
		first := mc.records[0]
		last := mc.records[len(mc.records)-1]
		duration := last.AdvancedAt.Sub(first.AdvancedAt)
		if duration > 0 {
			m.LedgersPerSecond = float64(last.LedgerSeq-first.LedgerSeq) / duration.Seconds()
		}
	}

	return m
}

// Reset clears all collected metrics.
func (mc *MetricsCollector) Reset() {
	mc.records = mc.records[:0]
	mc.advances = 0
	mc.highWater = 0
}
