package admission

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/finclear/oms/internal/config"
)

type stubProbe struct {
	ratio float64
	err   error
}

func (p *stubProbe) Name() string                  { return "stub" }
func (p *stubProbe) Utilization() (float64, error) { return p.ratio, p.err }

type panicProbe struct{}

func (panicProbe) Name() string                  { return "panic" }
func (panicProbe) Utilization() (float64, error) { panic("probe exploded") }

func testAdmissionConfig() config.AdmissionConfig {
	return config.AdmissionConfig{
		GoroutineThreshold: 0.90,
		DBPoolThreshold:    0.95,
		MemoryThreshold:    0.85,
		RetryAfterBase:     60,
		RetryAfterMax:      300,
	}
}

func newTestDetector(t *testing.T, g, d, m Probe) *Detector {
	t.Helper()
	return NewDetectorWithProbes(testAdmissionConfig(), g, d, m, zaptest.NewLogger(t))
}

func TestIsOverloadedThresholds(t *testing.T) {
	tests := []struct {
		name       string
		goroutines float64
		dbPool     float64
		memory     float64
		want       bool
	}{
		{"all idle", 0.0, 0.0, 0.0, false},
		{"all just below thresholds", 0.89, 0.94, 0.84, false},
		{"goroutines at threshold", 0.90, 0.0, 0.0, true},
		{"db pool at threshold", 0.0, 0.95, 0.0, true},
		{"memory at threshold", 0.0, 0.0, 0.85, true},
		{"goroutines above threshold", 0.99, 0.0, 0.0, true},
		{"db pool high but below", 0.0, 0.949, 0.0, false},
		{"memory saturated", 0.2, 0.2, 1.0, true},
		{"everything saturated", 1.0, 1.0, 1.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t,
				&stubProbe{ratio: tt.goroutines},
				&stubProbe{ratio: tt.dbPool},
				&stubProbe{ratio: tt.memory})
			assert.Equal(t, tt.want, d.IsOverloaded())
		})
	}
}

func TestIsOverloadedFailsOpenOnProbeError(t *testing.T) {
	// A failing probe reads as zero utilization, never as overload.
	d := newTestDetector(t,
		&stubProbe{ratio: 0.99, err: fmt.Errorf("runtime info unavailable")},
		&stubProbe{ratio: 0},
		&stubProbe{ratio: 0})
	assert.False(t, d.IsOverloaded())
}

func TestIsOverloadedOneBrokenProbeDoesNotMaskOthers(t *testing.T) {
	d := newTestDetector(t,
		&stubProbe{err: fmt.Errorf("broken")},
		&stubProbe{ratio: 0.99},
		&stubProbe{ratio: 0})
	assert.True(t, d.IsOverloaded())
}

func TestIsOverloadedFailsOpenOnPanic(t *testing.T) {
	d := newTestDetector(t, panicProbe{}, panicProbe{}, panicProbe{})
	assert.False(t, d.IsOverloaded())
}

func TestSecondaryGoroutineGuard(t *testing.T) {
	cfg := testAdmissionConfig()
	cfg.MaxGoroutines = 1000
	cfg.GoroutineMargin = 100

	d := NewDetectorWithProbes(cfg,
		&stubProbe{ratio: 0.5}, &stubProbe{ratio: 0}, &stubProbe{ratio: 0},
		zaptest.NewLogger(t))

	d.activeGoroutines = func() int { return 899 }
	assert.False(t, d.IsOverloaded())

	d.activeGoroutines = func() int { return 900 }
	assert.True(t, d.IsOverloaded())
}

func TestRetryAfterBounds(t *testing.T) {
	tests := []struct {
		name       string
		goroutines float64
		dbPool     float64
		memory     float64
	}{
		{"idle", 0, 0, 0},
		{"moderate", 0.5, 0.5, 0.5},
		{"saturated", 1.0, 1.0, 1.0},
		{"beyond saturated", 5.0, 5.0, 5.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(t,
				&stubProbe{ratio: tt.goroutines},
				&stubProbe{ratio: tt.dbPool},
				&stubProbe{ratio: tt.memory})
			got := d.RetryAfterSeconds()
			assert.GreaterOrEqual(t, got, 60)
			assert.LessOrEqual(t, got, 300)
		})
	}
}

func TestRetryAfterMonotonic(t *testing.T) {
	// Raising any single dimension must never lower the answer.
	steps := []float64{0, 0.25, 0.5, 0.75, 1.0}
	for dim := 0; dim < 3; dim++ {
		prev := 0
		for _, v := range steps {
			ratios := [3]float64{0.3, 0.3, 0.3}
			ratios[dim] = v
			d := newTestDetector(t,
				&stubProbe{ratio: ratios[0]},
				&stubProbe{ratio: ratios[1]},
				&stubProbe{ratio: ratios[2]})
			got := d.RetryAfterSeconds()
			assert.GreaterOrEqual(t, got, prev, "dimension %d at %v", dim, v)
			prev = got
		}
	}
}

func TestRetryAfterIdleIsBase(t *testing.T) {
	d := newTestDetector(t, &stubProbe{}, &stubProbe{}, &stubProbe{})
	assert.Equal(t, 60, d.RetryAfterSeconds())
}

func TestRetryAfterSaturatedIsMax(t *testing.T) {
	d := newTestDetector(t,
		&stubProbe{ratio: 1}, &stubProbe{ratio: 1}, &stubProbe{ratio: 1})
	assert.Equal(t, 300, d.RetryAfterSeconds())
}

func TestRetryAfterFailsToBaseOnPanic(t *testing.T) {
	d := newTestDetector(t, panicProbe{}, panicProbe{}, panicProbe{})
	assert.Equal(t, 60, d.RetryAfterSeconds())
}

func TestDetectorStats(t *testing.T) {
	d := newTestDetector(t, &stubProbe{}, &stubProbe{}, &stubProbe{})
	require.Zero(t, d.Stats().Checks)

	for i := 0; i < 5; i++ {
		d.IsOverloaded()
	}
	stats := d.Stats()
	assert.Equal(t, uint64(5), stats.Checks)
	assert.GreaterOrEqual(t, stats.AverageLatency.Nanoseconds(), int64(0))
}

func TestRealProbesFailOpenWhenUninstrumented(t *testing.T) {
	g := &GoroutineProbe{Max: 0}
	ratio, err := g.Utilization()
	require.NoError(t, err)
	assert.Zero(t, ratio)

	d := &DBPoolProbe{DB: nil}
	ratio, err = d.Utilization()
	require.NoError(t, err)
	assert.Zero(t, ratio)
}

func TestHeapProbeReadsCommittedFallback(t *testing.T) {
	p := &HeapProbe{}
	ratio, err := p.Utilization()
	require.NoError(t, err)
	assert.Greater(t, ratio, 0.0)
	assert.LessOrEqual(t, ratio, 1.0)
}
