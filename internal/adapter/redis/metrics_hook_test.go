package redis

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/emofusion/internal/adapter/metrics"
)

func newTestMetricsHook() (*MetricsHook, *metrics.RedisMetrics) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	return NewMetricsHook(m), m
}

func TestMetricsHook_ProcessCountsByStatus(t *testing.T) {
	hook, m := newTestMetricsHook()
	cmd := goredis.NewStringCmd(context.Background(), "get", "k")

	ok := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return nil })
	miss := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	fail := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return errors.New("boom") })

	_ = ok(context.Background(), cmd)
	_ = miss(context.Background(), cmd)
	_ = fail(context.Background(), cmd)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("get", "error")))
}

func TestMetricsHook_PipelineIsOneOperation(t *testing.T) {
	hook, m := newTestMetricsHook()
	pipe := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })

	err := pipe(context.Background(), []goredis.Cmder{
		goredis.NewStatusCmd(context.Background(), "set", "k", "v"),
		goredis.NewIntCmd(context.Background(), "publish", "c", "v"),
	})

	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("pipeline", "success")))
}

func TestMetricsHook_DialErrors(t *testing.T) {
	hook, m := newTestMetricsHook()
	dial := hook.DialHook(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	_, err := dial(context.Background(), "tcp", "localhost:6379")

	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionErrors))
}
