package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_http_requests_total",
			Help: "Total number of HTTP requests processed by the service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	pushDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_push_dispatch_total",
			Help: "Push dispatch attempts by outcome.",
		},
		[]string{"trigger", "outcome"},
	)
	messagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_messages_sent_total",
			Help: "Total number of persisted chat messages.",
		},
	)
	activeSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatsync_active_subscriptions",
			Help: "Number of active live subscriptions.",
		},
		[]string{"kind"},
	)
	subscriptionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_subscription_events_total",
			Help: "Snapshots delivered to live subscribers.",
		},
		[]string{"kind"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	listenerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_listener_events_total",
			Help: "Trigger-listener deliveries by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		pushDispatchTotal,
		messagesSentTotal,
		activeSubscriptions,
		subscriptionEventsTotal,
		amqpPublishErrorsTotal,
		listenerEventsTotal,
	)
}

// HTTPMetricsMiddleware records per-route request counts and latencies.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncPushDispatch(trigger, outcome string) {
	pushDispatchTotal.WithLabelValues(trigger, outcome).Inc()
}

func IncMessagesSent() {
	messagesSentTotal.Inc()
}

func IncSubscriptions(kind string) {
	activeSubscriptions.WithLabelValues(kind).Inc()
}

func DecSubscriptions(kind string) {
	activeSubscriptions.WithLabelValues(kind).Dec()
}

func IncSubscriptionEvent(kind string) {
	subscriptionEventsTotal.WithLabelValues(kind).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncListenerEvent(outcome string) {
	listenerEventsTotal.WithLabelValues(outcome).Inc()
}
