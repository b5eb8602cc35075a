package metrics

import (
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterRedisPoolMetrics exposes go-redis connection pool statistics as Prometheus gauges.
func RegisterRedisPoolMetrics(reg prometheus.Registerer, client *redis.Client) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis_pool",
			Name:      "total_conns",
			Help:      "Total number of connections in the redis pool",
		}, func() float64 {
			return float64(client.PoolStats().TotalConns)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis_pool",
			Name:      "idle_conns",
			Help:      "Number of idle connections in the redis pool",
		}, func() float64 {
			return float64(client.PoolStats().IdleConns)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis_pool",
			Name:      "timeouts_total",
			Help:      "Number of times a wait for a redis connection timed out",
		}, func() float64 {
			return float64(client.PoolStats().Timeouts)
		}),
	)
}
