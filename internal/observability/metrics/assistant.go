package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AssistantCollectors are the domain metrics shared by every front end: extractions,
// chat turns, token usage and resilience events.
type AssistantCollectors struct {
	service string

	extractionsTotal *prometheus.CounterVec
	chatTurnsTotal   *prometheus.CounterVec
	chatDuration     prometheus.Histogram
	llmTokensTotal   *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func newAssistantCollectors(service string, registry prometheus.Registerer) *AssistantCollectors {
	constLabels := prometheus.Labels{"service": service}

	c := &AssistantCollectors{
		service: service,
		extractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "ctxa",
				Subsystem:   "context",
				Name:        "extractions_total",
				Help:        "Context extractions by source and result kind.",
				ConstLabels: constLabels,
			},
			[]string{"source", "kind"},
		),
		chatTurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "ctxa",
				Subsystem:   "chat",
				Name:        "turns_total",
				Help:        "Chat turns by status.",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		chatDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   "ctxa",
				Subsystem:   "chat",
				Name:        "duration_seconds",
				Help:        "Time from question to stored reply.",
				Buckets:     []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
				ConstLabels: constLabels,
			},
		),
		llmTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "ctxa",
				Subsystem:   "llm",
				Name:        "tokens_total",
				Help:        "Approximate token usage by direction.",
				ConstLabels: constLabels,
			},
			[]string{"direction", "model"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "ctxa",
				Subsystem:   "resilience",
				Name:        "retries_total",
				Help:        "Retried outbound calls by operation.",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "ctxa",
				Subsystem:   "resilience",
				Name:        "breaker_open",
				Help:        "1 while the operation's circuit breaker is not closed.",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		c.extractionsTotal,
		c.chatTurnsTotal,
		c.chatDuration,
		c.llmTokensTotal,
		c.retriesTotal,
		c.breakerState,
	)
	return c
}

func (c *AssistantCollectors) RecordExtraction(source, kind string) {
	c.extractionsTotal.WithLabelValues(source, kind).Inc()
}

func (c *AssistantCollectors) RecordChatTurn(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	c.chatTurnsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		c.chatDuration.Observe(duration.Seconds())
	}
}

func (c *AssistantCollectors) RecordTokenUsage(model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		c.llmTokensTotal.WithLabelValues("in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		c.llmTokensTotal.WithLabelValues("out", model).Add(float64(completionTokens))
	}
}

func (c *AssistantCollectors) ObserveRetry(operation string) {
	c.retriesTotal.WithLabelValues(operation).Inc()
}

func (c *AssistantCollectors) ObserveBreakerState(operation string, state string) {
	value := 1.0
	if state == "closed" {
		value = 0
	}
	c.breakerState.WithLabelValues(operation).Set(value)
}
