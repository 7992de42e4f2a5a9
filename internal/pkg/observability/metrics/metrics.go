package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	APICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aws_sqs_api_calls_total",
			Help: "Total SQS API calls by operation and outcome",
		}, []string{"operation", "outcome"})

	APICallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aws_sqs_api_call_seconds",
			Help:    "Histogram of SQS API call duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"})

	MessagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aws_sqs_messages_received_total",
			Help: "Total messages received from SQS",
		})

	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aws_sqs_messages_sent_total",
			Help: "Total messages sent to SQS",
		})

	QueueLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aws_sqs_queue_length",
			Help: "Approximate number of messages in the queue",
		}, []string{"queue_url"})

	QueueSampleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aws_sqs_queue_sample_failures_total",
			Help: "Total failed queue depth samples",
		}, []string{"queue_url"})
)

func Setup() {
	prometheus.MustRegister(APICalls)
	prometheus.MustRegister(APICallDuration)
	prometheus.MustRegister(MessagesReceived)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(QueueLength)
	prometheus.MustRegister(QueueSampleFailures)
}

// ObserveAPICall records the outcome and latency of one SQS call.
func ObserveAPICall(operation string, elapsed time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	APICalls.WithLabelValues(operation, outcome).Inc()
	APICallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
