package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	DatabaseQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total database queries",
		},
	)

	// ResponseCache counts server-side cache lookups by procedure and
	// result (hit, miss, error).
	ResponseCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "response_cache_requests_total",
			Help: "Response cache lookups",
		},
		[]string{"procedure", "result"},
	)

	ProcedureCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpc_procedure_calls_total",
			Help: "RPC procedure calls by outcome code",
		},
		[]string{"procedure", "code"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(DatabaseQueries)
		prometheus.MustRegister(ResponseCache)
		prometheus.MustRegister(ProcedureCalls)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
