package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "telehealth"

// SearchMetrics exposes counters for provider discovery.
type SearchMetrics struct {
	requestsTotal *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	m := &SearchMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Provider searches by terminal constraint level",
		}, []string{"level"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "cache_total",
			Help:      "Search cache lookups by result",
		}, []string{"result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "Latency of uncached provider searches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"level"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.cacheTotal, m.latency)
	return m
}

func (m *SearchMetrics) ObserveSearch(level string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(level).Inc()
	m.latency.WithLabelValues(level).Observe(seconds)
}

func (m *SearchMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// ShiftMetrics tracks shift transitions and calendar mirroring.
type ShiftMetrics struct {
	transitionsTotal *prometheus.CounterVec
	mirrorTotal      *prometheus.CounterVec
}

func NewShiftMetrics(reg prometheus.Registerer) *ShiftMetrics {
	m := &ShiftMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shifts",
			Name:      "transitions_total",
			Help:      "Shift accept/cancel/apply attempts by result",
		}, []string{"action", "result"}),
		mirrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shifts",
			Name:      "calendar_mirror_total",
			Help:      "Inline calendar mirror attempts by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.mirrorTotal)
	return m
}

func (m *ShiftMetrics) ObserveTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, result).Inc()
}

func (m *ShiftMetrics) ObserveMirror(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "synced"
	}
	m.mirrorTotal.WithLabelValues(result).Inc()
}

// WaitlistMetrics counts waitlist status transitions.
type WaitlistMetrics struct {
	transitionsTotal *prometheus.CounterVec
}

func NewWaitlistMetrics(reg prometheus.Registerer) *WaitlistMetrics {
	m := &WaitlistMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waitlist",
			Name:      "transitions_total",
			Help:      "Waitlist entries moved into a status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal)
	return m
}

func (m *WaitlistMetrics) ObserveTransition(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.transitionsTotal.WithLabelValues(status).Add(float64(n))
}

// OutboxMetrics counts outbox deliveries.
type OutboxMetrics struct {
	deliveryTotal *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	m := &OutboxMetrics{
		deliveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "delivery_total",
			Help:      "Outbox delivery attempts by event type and result",
		}, []string{"type", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.deliveryTotal)
	return m
}

func (m *OutboxMetrics) ObserveDelivery(eventType string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "delivered"
	}
	m.deliveryTotal.WithLabelValues(eventType, result).Inc()
}
