package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace       = "atlasassist"
	MetricsSubsystemSystem = "system"
	MetricsSubsystemHTTP   = "http"
	MetricsSubsystemAPI    = "api"
	MetricsSubsystemLLM    = "llm"
	MetricsSubsystemTools  = "tools"
)

// LLMetrics records per-LLM usage metrics.
type LLMetrics interface {
	IncrementLLMRequests()
	IncrementToolCalls(toolName string)
}

type Metrics interface {
	GetRegistry() *prometheus.Registry

	ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64)

	IncrementHTTPRequests()
	IncrementHTTPErrors()

	GetMetricsForAIService(llmName string) LLMetrics
}

type InstanceInfo struct {
	InstallationID string
	Version        string
}

// metrics instruments the assistant in prometheus.
type metrics struct {
	registry *prometheus.Registry

	startTime prometheus.Gauge
	info      prometheus.Gauge

	apiTime *prometheus.HistogramVec

	httpRequestsTotal prometheus.Counter
	httpErrorsTotal   prometheus.Counter

	llmRequestsTotal *prometheus.CounterVec
	toolCallsTotal   *prometheus.CounterVec
}

type llmMetrics struct {
	llmName          string
	llmRequestsTotal *prometheus.CounterVec
	toolCallsTotal   *prometheus.CounterVec
}

func (m *llmMetrics) IncrementLLMRequests() {
	if m.llmRequestsTotal != nil {
		m.llmRequestsTotal.With(prometheus.Labels{"llm_name": m.llmName}).Inc()
	}
}

func (m *llmMetrics) IncrementToolCalls(toolName string) {
	if m.toolCallsTotal != nil {
		m.toolCallsTotal.With(prometheus.Labels{"llm_name": m.llmName, "tool_name": toolName}).Inc()
	}
}

// NewMetrics Factory method to create a new metrics collector.
func NewMetrics(info InstanceInfo) Metrics {
	m := &metrics{}

	m.registry = prometheus.NewRegistry()
	options := collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}
	m.registry.MustRegister(collectors.NewProcessCollector(options))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemSystem,
		Name:      "start_time_seconds",
		Help:      "The time the assistant started.",
	})
	m.registry.MustRegister(m.startTime)

	m.info = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemSystem,
		Name:      "info",
		Help:      "Instance information.",
		ConstLabels: prometheus.Labels{
			"installation_id": info.InstallationID,
			"version":         info.Version,
		},
	})
	m.registry.MustRegister(m.info)
	m.info.Set(1)

	m.apiTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemAPI,
		Name:      "time_seconds",
		Help:      "Time to execute the api handler",
	}, []string{"handler", "method", "status_code"})
	m.registry.MustRegister(m.apiTime)

	m.httpRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "requests_total",
		Help:      "The total number of http API requests.",
	})
	m.registry.MustRegister(m.httpRequestsTotal)

	m.httpErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemHTTP,
		Name:      "errors_total",
		Help:      "The total number of http API errors.",
	})
	m.registry.MustRegister(m.httpErrorsTotal)

	m.llmRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemLLM,
		Name:      "requests_total",
		Help:      "The total number of requests made to an LLM.",
	}, []string{"llm_name"})
	m.registry.MustRegister(m.llmRequestsTotal)

	m.toolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystemTools,
		Name:      "calls_total",
		Help:      "The total number of tool calls resolved on behalf of an LLM.",
	}, []string{"llm_name", "tool_name"})
	m.registry.MustRegister(m.toolCallsTotal)

	m.startTime.SetToCurrentTime()

	return m
}

func (m *metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metrics) ObserveAPIEndpointDuration(handler, method, statusCode string, elapsed float64) {
	if m.apiTime != nil {
		m.apiTime.With(prometheus.Labels{"handler": handler, "method": method, "status_code": statusCode}).Observe(elapsed)
	}
}

func (m *metrics) IncrementHTTPRequests() {
	if m.httpRequestsTotal != nil {
		m.httpRequestsTotal.Inc()
	}
}

func (m *metrics) IncrementHTTPErrors() {
	if m.httpErrorsTotal != nil {
		m.httpErrorsTotal.Inc()
	}
}

func (m *metrics) GetMetricsForAIService(llmName string) LLMetrics {
	return &llmMetrics{
		llmName:          llmName,
		llmRequestsTotal: m.llmRequestsTotal,
		toolCallsTotal:   m.toolCallsTotal,
	}
}

// NewMetricsHandler returns an http handler serving the prometheus registry.
func NewMetricsHandler(m Metrics) http.Handler {
	return promhttp.HandlerFor(m.GetRegistry(), promhttp.HandlerOpts{})
}
