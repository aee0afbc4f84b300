package uadk

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing — hardware offload
// calls are expected in the low microseconds, MAX_RETRY spins at worst
// stretch into the TIMEOUT range.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks runtime operation counters, keyed by the same op classes
// a Context carries (spec §3): compress, decompress, cipher-encrypt,
// cipher-decrypt.
type Metrics struct {
	CompressOps   atomic.Uint64
	DecompressOps atomic.Uint64
	CipherEncOps  atomic.Uint64
	CipherDecOps  atomic.Uint64

	CompressBytes   atomic.Uint64
	DecompressBytes atomic.Uint64
	CipherBytes     atomic.Uint64

	CompressErrors   atomic.Uint64
	DecompressErrors atomic.Uint64
	CipherErrors     atomic.Uint64

	// Async pool occupancy statistics, fed through RecordPoolDepth or
	// ObservePoolDepth; the dispatch layer does not call either itself.
	PoolDepthTotal atomic.Uint64
	PoolDepthCount atomic.Uint64
	MaxPoolDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// LatencyBuckets holds cumulative counts: bucket[i] counts operations
	// with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCompress records a compress-direction dispatch.
func (m *Metrics) RecordCompress(bytes uint64, latencyNs uint64, success bool) {
	m.CompressOps.Add(1)
	if success {
		m.CompressBytes.Add(bytes)
	} else {
		m.CompressErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordDecompress records a decompress-direction dispatch.
func (m *Metrics) RecordDecompress(bytes uint64, latencyNs uint64, success bool) {
	m.DecompressOps.Add(1)
	if success {
		m.DecompressBytes.Add(bytes)
	} else {
		m.DecompressErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordCipherEncrypt records a cipher-encrypt dispatch.
func (m *Metrics) RecordCipherEncrypt(bytes uint64, latencyNs uint64, success bool) {
	m.CipherEncOps.Add(1)
	if success {
		m.CipherBytes.Add(bytes)
	} else {
		m.CipherErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordCipherDecrypt records a cipher-decrypt dispatch.
func (m *Metrics) RecordCipherDecrypt(bytes uint64, latencyNs uint64, success bool) {
	m.CipherDecOps.Add(1)
	if success {
		m.CipherBytes.Add(bytes)
	} else {
		m.CipherErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordPoolDepth records the current async pool occupancy for statistics.
func (m *Metrics) RecordPoolDepth(depth uint32) {
	m.PoolDepthTotal.Add(uint64(depth))
	m.PoolDepthCount.Add(1)

	for {
		current := m.MaxPoolDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxPoolDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the runtime as torn down.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics plus derived stats.
type MetricsSnapshot struct {
	CompressOps   uint64
	DecompressOps uint64
	CipherEncOps  uint64
	CipherDecOps  uint64

	CompressBytes   uint64
	DecompressBytes uint64
	CipherBytes     uint64

	CompressErrors   uint64
	DecompressErrors uint64
	CipherErrors     uint64

	AvgPoolDepth float64
	MaxPoolDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	ErrorRate  float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CompressOps:      m.CompressOps.Load(),
		DecompressOps:    m.DecompressOps.Load(),
		CipherEncOps:     m.CipherEncOps.Load(),
		CipherDecOps:     m.CipherDecOps.Load(),
		CompressBytes:    m.CompressBytes.Load(),
		DecompressBytes:  m.DecompressBytes.Load(),
		CipherBytes:      m.CipherBytes.Load(),
		CompressErrors:   m.CompressErrors.Load(),
		DecompressErrors: m.DecompressErrors.Load(),
		CipherErrors:     m.CipherErrors.Load(),
		MaxPoolDepth:     m.MaxPoolDepth.Load(),
	}

	snap.TotalOps = snap.CompressOps + snap.DecompressOps + snap.CipherEncOps + snap.CipherDecOps
	snap.TotalBytes = snap.CompressBytes + snap.DecompressBytes + snap.CipherBytes

	poolDepthTotal := m.PoolDepthTotal.Load()
	poolDepthCount := m.PoolDepthCount.Load()
	if poolDepthCount > 0 {
		snap.AvgPoolDepth = float64(poolDepthTotal) / float64(poolDepthCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	totalErrors := snap.CompressErrors + snap.DecompressErrors + snap.CipherErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.CompressOps.Store(0)
	m.DecompressOps.Store(0)
	m.CipherEncOps.Store(0)
	m.CipherDecOps.Store(0)
	m.CompressBytes.Store(0)
	m.DecompressBytes.Store(0)
	m.CipherBytes.Store(0)
	m.CompressErrors.Store(0)
	m.DecompressErrors.Store(0)
	m.CipherErrors.Store(0)
	m.PoolDepthTotal.Store(0)
	m.PoolDepthCount.Store(0)
	m.MaxPoolDepth.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection for dispatch operations.
type Observer interface {
	ObserveCompress(bytes uint64, latencyNs uint64, success bool)
	ObserveDecompress(bytes uint64, latencyNs uint64, success bool)
	ObserveCipherEncrypt(bytes uint64, latencyNs uint64, success bool)
	ObserveCipherDecrypt(bytes uint64, latencyNs uint64, success bool)
	ObservePoolDepth(depth uint32)
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCompress(uint64, uint64, bool)      {}
func (NoOpObserver) ObserveDecompress(uint64, uint64, bool)    {}
func (NoOpObserver) ObserveCipherEncrypt(uint64, uint64, bool) {}
func (NoOpObserver) ObserveCipherDecrypt(uint64, uint64, bool) {}
func (NoOpObserver) ObservePoolDepth(uint32)                   {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCompress(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordCompress(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveDecompress(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordDecompress(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveCipherEncrypt(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordCipherEncrypt(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveCipherDecrypt(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordCipherDecrypt(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObservePoolDepth(depth uint32) {
	o.metrics.RecordPoolDepth(depth)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
