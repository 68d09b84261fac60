package metrics

import (
	"context"
	"database/sql"
	"time"
)

// PoolStatsFunc returns the open connection count of a pool
type PoolStatsFunc func() int

// SQLPool adapts a *sql.DB to PoolStatsFunc
func SQLPool(db *sql.DB) PoolStatsFunc {
	return func() int { return db.Stats().OpenConnections }
}

// PoolReporter samples connection pools into the open connection gauges
type PoolReporter struct {
	database map[string]PoolStatsFunc
	redis    map[string]PoolStatsFunc
	interval time.Duration
}

func NewPoolReporter(interval time.Duration) *PoolReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolReporter{
		database: make(map[string]PoolStatsFunc),
		redis:    make(map[string]PoolStatsFunc),
		interval: interval,
	}
}

// AddDatabase registers a SQL pool under name
func (r *PoolReporter) AddDatabase(name string, stats PoolStatsFunc) *PoolReporter {
	r.database[name] = stats
	return r
}

// AddRedis registers a Redis pool under instance
func (r *PoolReporter) AddRedis(instance string, stats PoolStatsFunc) *PoolReporter {
	r.redis[instance] = stats
	return r
}

// Sample records the current pool sizes once
func (r *PoolReporter) Sample() {
	m := Get()
	for name, stats := range r.database {
		m.DatabaseConnectionsOpen.WithLabelValues(name).Set(float64(stats()))
	}
	for instance, stats := range r.redis {
		m.RedisConnectionsOpen.WithLabelValues(instance).Set(float64(stats()))
	}
}

// Run samples on every tick until ctx is done
func (r *PoolReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sample()
		}
	}
}
