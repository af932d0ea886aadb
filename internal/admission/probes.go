// Package admission implements the resource-pressure gate in front of
// the batch submission endpoint: read-only utilization probes, an
// overload detector combining them, and the gin middleware that rejects
// batches with a retry hint while the process is under pressure.
package admission

import (
	"fmt"
	"runtime"

	"gorm.io/gorm"
)

// Probe reads the current utilization of one host resource as a ratio
// in [0,1]. A probe whose underlying subsystem is absent or failing
// returns an error; the detector folds errors into zero utilization so
// one broken probe never rejects traffic or masks the other probes.
type Probe interface {
	Name() string
	Utilization() (float64, error)
}

// GoroutineProbe reports scheduler pressure as active goroutines over a
// configured ceiling.
type GoroutineProbe struct {
	Max int
}

func (p *GoroutineProbe) Name() string { return "goroutines" }

func (p *GoroutineProbe) Utilization() (float64, error) {
	if p.Max <= 0 {
		// Uninstrumented, fail open.
		return 0, nil
	}
	return float64(runtime.NumGoroutine()) / float64(p.Max), nil
}

// DBPoolProbe reports database connection pool pressure as in-use over
// the pool's configured maximum.
type DBPoolProbe struct {
	DB *gorm.DB
}

func (p *DBPoolProbe) Name() string { return "db_pool" }

func (p *DBPoolProbe) Utilization() (float64, error) {
	if p.DB == nil {
		return 0, nil
	}
	sqlDB, err := p.DB.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to get database connection: %w", err)
	}
	stats := sqlDB.Stats()
	if stats.MaxOpenConnections <= 0 {
		// Unlimited pool, nothing to measure against.
		return 0, nil
	}
	return float64(stats.InUse) / float64(stats.MaxOpenConnections), nil
}

// HeapProbe reports heap pressure as allocated bytes over a configured
// limit, falling back to committed heap when no limit is set.
type HeapProbe struct {
	LimitBytes int64
}

func (p *HeapProbe) Name() string { return "heap" }

func (p *HeapProbe) Utilization() (float64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if p.LimitBytes > 0 {
		return float64(ms.HeapAlloc) / float64(p.LimitBytes), nil
	}
	if ms.HeapSys == 0 {
		return 0, nil
	}
	return float64(ms.HeapAlloc) / float64(ms.HeapSys), nil
}
