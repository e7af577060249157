package optimize

import (
	"log/slog"
	"sync"
	"time"

	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/monitor"
)

// Level gates how eagerly the optimizer grows the worker pool.
type Level string

const (
	LevelConservative Level = "conservative" // never grow, only shrink
	LevelBalanced     Level = "balanced"
	LevelAggressive   Level = "aggressive"
)

// Pressure thresholds for AutoOptimize.
const (
	highCPUPercent    = 85.0
	highMemoryPercent = 85.0
	lowCPUPercent     = 40.0
	lowMemoryPercent  = 60.0
	queueThreshold    = 32
	drainBatchSize    = 8
)

// Config bounds the worker pool.
type Config struct {
	MinWorkers int
	MaxWorkers int
	Level      Level
	CacheTTL   time.Duration
}

// Optimizer owns the adaptive worker pool size and the TTL cache.
// Concurrent reads, serialized writes.
type Optimizer struct {
	logger  *slog.Logger
	metrics *monitor.Metrics
	cache   *Cache

	mu      sync.RWMutex
	cfg     Config
	workers int
}

func New(cfg Config, logger *slog.Logger, metrics *monitor.Metrics) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers * 4
	}
	if cfg.Level == "" {
		cfg.Level = LevelBalanced
	}

	o := &Optimizer{
		logger:  logger,
		metrics: metrics,
		cache:   NewCache(cfg.CacheTTL),
		cfg:     cfg,
		workers: cfg.MinWorkers,
	}
	if metrics != nil {
		metrics.SetWorkers(o.workers)
	}
	return o
}

// Workers returns the current pool size.
func (o *Optimizer) Workers() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.workers
}

// Cache returns the shared TTL cache.
func (o *Optimizer) Cache() *Cache {
	return o.cache
}

// AutoOptimize adjusts the pool from one snapshot: shrink and clear
// caches under high CPU/memory pressure; grow under low utilization
// when the level permits.
func (o *Optimizer) AutoOptimize(snap entity.PerformanceSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	before := o.workers
	switch {
	case snap.CPUPercent > highCPUPercent || snap.MemoryPercent > highMemoryPercent:
		if o.workers > o.cfg.MinWorkers {
			o.workers--
		}
		o.cache.Clear()
		o.logger.Info("optimize.pressure.shrink",
			"cpu", snap.CPUPercent, "mem", snap.MemoryPercent,
			"workers", o.workers, "cache_cleared", true)

	case snap.CPUPercent < lowCPUPercent && snap.MemoryPercent < lowMemoryPercent &&
		o.cfg.Level != LevelConservative:
		if o.workers < o.cfg.MaxWorkers {
			o.workers++
			o.logger.Info("optimize.idle.grow",
				"cpu", snap.CPUPercent, "mem", snap.MemoryPercent, "workers", o.workers)
		}
	}

	if o.metrics != nil && o.workers != before {
		o.metrics.SetWorkers(o.workers)
	}
}

// CacheGet reads through the TTL cache, surfacing hit/miss counters to
// the monitor's metrics.
func (o *Optimizer) CacheGet(key string) (any, bool) {
	v, ok := o.cache.Get(key)
	if o.metrics != nil {
		if ok {
			o.metrics.CacheHit()
		} else {
			o.metrics.CacheMiss()
		}
	}
	return v, ok
}

// CacheSet stores a memoized pure computation result.
func (o *Optimizer) CacheSet(key string, value any) {
	o.cache.Set(key, value)
}

// DrainBatch returns the number of queued items to pull in one batch:
// the drain size when the queue is backed up, otherwise the full depth.
func (o *Optimizer) DrainBatch(queueDepth int) int {
	if queueDepth > queueThreshold {
		o.logger.Warn("optimize.queue.backlog", "depth", queueDepth, "batch", drainBatchSize)
		return drainBatchSize
	}
	return queueDepth
}
