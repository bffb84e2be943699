// File: metrics/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus instrumentation for the reactor, transports, and deferred
// chains. Collectors register on the default registry; embedding
// programs decide how (and whether) to expose them.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsAcceptedTotal counts inbound connections accepted by
	// listeners.
	ConnectionsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twine_connections_accepted_total",
		Help: "Total number of inbound connections accepted",
	})

	// ConnectionsFailedTotal counts outbound connection attempts that
	// ended in ConnectionFailed.
	ConnectionsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twine_connections_failed_total",
		Help: "Total number of failed outbound connection attempts",
	})

	// ConnectionsActive gauges transports currently registered with a
	// reactor.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "twine_connections_active",
		Help: "Number of currently registered connection transports",
	})

	// BytesReceivedTotal counts bytes delivered to DataReceived.
	BytesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twine_bytes_received_total",
		Help: "Total bytes read from connection transports",
	})

	// BytesSentTotal counts bytes flushed to connection descriptors.
	BytesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twine_bytes_sent_total",
		Help: "Total bytes written to connection transports",
	})

	// TimersFiredTotal counts CallLater callbacks that ran.
	TimersFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twine_timers_fired_total",
		Help: "Total number of reactor timers fired",
	})

	// DeferredUnhandledTotal counts failures that reached the end of a
	// deferred chain with no errback to consume them.
	DeferredUnhandledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "twine_deferred_unhandled_total",
		Help: "Total number of unhandled deferred failures",
	})
)
