package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/modelgate/core/logger"
)

// outcomeOK is the dispatch outcome of successful requests
const outcomeOK = "ok"

type gatewayMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	dispatch *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry) *gatewayMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}
	factory := promauto.With(registry)
	return &gatewayMetrics{
		registry: registry,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelgate_http_requests_total",
				Help: "Total number of HTTP requests by route, code and method",
			},
			[]string{"route", "code", "method"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modelgate_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code", "method"},
		),
		dispatch: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modelgate_dispatch_total",
				Help: "Gateway requests by route, entity type, method and outcome",
			},
			[]string{"route", "model", "method", "outcome"},
		),
	}
}

// instrument wraps h with request counting and latency measurement for route
func (m *gatewayMetrics) instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), h))
}

// observeDispatch counts one request outcome. The entity type label is only set
// once the model has been resolved, so unknown model names cannot blow up cardinality.
func (m *gatewayMetrics) observeDispatch(r *http.Request, outcome string) {
	route := ""
	if current := mux.CurrentRoute(r); current != nil {
		route, _ = current.GetPathTemplate()
	}
	m.dispatch.WithLabelValues(route, modelFromContext(r.Context()), r.Method, outcome).Inc()
}

func (g *Gateway) handleMetrics(router *mux.Router) {
	logger.Default().Debugln("metrics")
	logger.Default().Debugln("  handle metrics route: /metrics GET")
	router.Handle("/metrics", promhttp.HandlerFor(g.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

type contextKeyModelType struct{}

var contextKeyModel = &contextKeyModelType{}

func contextWithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, contextKeyModel, model)
}

func modelFromContext(ctx context.Context) string {
	model, _ := ctx.Value(contextKeyModel).(string)
	return model
}
