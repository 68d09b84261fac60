package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPoolReporterSample(t *testing.T) {
	dbOpen, redisOpen := 3, 7
	r := NewPoolReporter(0).
		AddDatabase("primary", func() int { return dbOpen }).
		AddRedis("cache", func() int { return redisOpen })

	r.Sample()
	m := Get()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DatabaseConnectionsOpen.WithLabelValues("primary")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RedisConnectionsOpen.WithLabelValues("cache")))

	dbOpen = 1
	r.Sample()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseConnectionsOpen.WithLabelValues("primary")))
}

func TestPoolReporterRunStops(t *testing.T) {
	r := NewPoolReporter(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Initialize())
}
