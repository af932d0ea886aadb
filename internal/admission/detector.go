package admission

import (
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/finclear/oms/internal/config"
	"github.com/finclear/oms/pkg/metrics"
)

// Weights applied to the three utilization dimensions when mapping a
// sample onto a retry delay. They sum to 1 so the weighted score stays
// in [0,1].
const (
	goroutineWeight = 0.4
	dbPoolWeight    = 0.3
	memoryWeight    = 0.3
)

// Sample is one best-effort snapshot of the three resource ratios.
// Probes are read without locks; the snapshot is not linearizable and
// does not need to be.
type Sample struct {
	Goroutines float64
	DBPool     float64
	Memory     float64
}

// DetectorStats exposes the detector's self-observability counters
type DetectorStats struct {
	Checks         uint64        `json:"checks"`
	AverageLatency time.Duration `json:"average_latency"`
}

// Detector decides whether the process is under enough resource
// pressure that new batch submissions should be rejected. It is an
// injectable component with per-instance state, never a package global.
type Detector struct {
	cfg    config.AdmissionConfig
	logger *zap.Logger

	goroutines Probe
	dbPool     Probe
	heap       Probe

	// Secondary guard input, swappable in tests.
	activeGoroutines func() int

	checks       atomic.Uint64
	latencyNanos atomic.Uint64
}

// NewDetector creates a detector wired to the real process probes
func NewDetector(cfg config.AdmissionConfig, db *gorm.DB, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:              cfg,
		logger:           logger,
		goroutines:       &GoroutineProbe{Max: cfg.MaxGoroutines},
		dbPool:           &DBPoolProbe{DB: db},
		heap:             &HeapProbe{LimitBytes: cfg.MemoryLimitBytes},
		activeGoroutines: runtime.NumGoroutine,
	}
}

// NewDetectorWithProbes creates a detector with injected probes
func NewDetectorWithProbes(cfg config.AdmissionConfig, goroutines, dbPool, heap Probe, logger *zap.Logger) *Detector {
	return &Detector{
		cfg:              cfg,
		logger:           logger,
		goroutines:       goroutines,
		dbPool:           dbPool,
		heap:             heap,
		activeGoroutines: runtime.NumGoroutine,
	}
}

// sample reads all three probes, degrading any probe error to zero
// utilization. Fail open: a broken probe must never reject a request.
func (d *Detector) sample() Sample {
	return Sample{
		Goroutines: d.read(d.goroutines),
		DBPool:     d.read(d.dbPool),
		Memory:     d.read(d.heap),
	}
}

func (d *Detector) read(p Probe) float64 {
	if p == nil {
		return 0
	}
	ratio, err := p.Utilization()
	if err != nil {
		d.logger.Debug("resource probe failed, treating as idle",
			zap.String("probe", p.Name()), zap.Error(err))
		return 0
	}
	if math.IsNaN(ratio) || ratio < 0 {
		return 0
	}
	return ratio
}

// IsOverloaded reports whether any resource dimension has crossed its
// threshold. It sits on the hot path of every batch request and must
// stay cheap; it never panics outward and answers false on any internal
// failure.
func (d *Detector) IsOverloaded() (overloaded bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("overload check panicked, failing open", zap.Any("panic", r))
			overloaded = false
		}
		d.recordCheck(time.Since(start))
	}()

	s := d.sample()
	if d.cfg.GoroutineThreshold > 0 && s.Goroutines >= d.cfg.GoroutineThreshold {
		return true
	}
	if d.cfg.DBPoolThreshold > 0 && s.DBPool >= d.cfg.DBPoolThreshold {
		return true
	}
	if d.cfg.MemoryThreshold > 0 && s.Memory >= d.cfg.MemoryThreshold {
		return true
	}
	// Secondary guard for the case where the goroutine ceiling is sized
	// tight: reject once the active count is within the margin of the
	// ceiling even if the ratio threshold has not tripped.
	if d.cfg.MaxGoroutines > 0 && d.cfg.GoroutineMargin > 0 &&
		d.activeGoroutines() >= d.cfg.MaxGoroutines-d.cfg.GoroutineMargin {
		return true
	}
	return false
}

// RetryAfterSeconds estimates how long a rejected caller should wait
// before retrying. Monotone nondecreasing in every utilization
// dimension, clamped to [base, max]. Answers the base delay on any
// internal failure.
func (d *Detector) RetryAfterSeconds() (seconds int) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("retry-after estimate panicked, using base delay", zap.Any("panic", r))
			seconds = d.cfg.RetryAfterBase
		}
	}()

	s := d.sample()
	score := goroutineWeight*clamp01(s.Goroutines) +
		dbPoolWeight*clamp01(s.DBPool) +
		memoryWeight*clamp01(s.Memory)

	span := float64(d.cfg.RetryAfterMax - d.cfg.RetryAfterBase)
	seconds = d.cfg.RetryAfterBase + int(math.Round(span*score))
	if seconds < d.cfg.RetryAfterBase {
		seconds = d.cfg.RetryAfterBase
	}
	if seconds > d.cfg.RetryAfterMax {
		seconds = d.cfg.RetryAfterMax
	}
	return seconds
}

// Stats returns the running count and average latency of overload checks
func (d *Detector) Stats() DetectorStats {
	checks := d.checks.Load()
	stats := DetectorStats{Checks: checks}
	if checks > 0 {
		stats.AverageLatency = time.Duration(d.latencyNanos.Load() / checks)
	}
	return stats
}

func (d *Detector) recordCheck(elapsed time.Duration) {
	d.checks.Add(1)
	d.latencyNanos.Add(uint64(elapsed.Nanoseconds()))
	metrics.OverloadChecks.Inc()
	metrics.OverloadCheckLatency.Observe(elapsed.Seconds())
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
