// Package metrics provides Prometheus instrumentation for the live-class
// components. It exposes gauges for open realtime channels and relay
// connections, counters for chat frame throughput, and histograms for REST
// and relay latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChannelsOpen tracks the number of client channels currently in the
	// Open state.
	ChannelsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "liveclass_channels_open",
		Help: "Current number of open realtime channels",
	})

	// ChannelTransitions counts client channel state transitions, labeled by
	// the state entered.
	ChannelTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liveclass_channel_transitions_total",
		Help: "Realtime channel state transitions",
	}, []string{"state"})

	// MessagesTotal counts chat frames seen by the client, labeled by
	// type: "sent", "received", "blocked", "malformed", "rejected", "ignored".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liveclass_messages_total",
		Help: "Total number of chat frames processed by the client",
	}, []string{"type"})

	// DirectoryRequestDuration records REST call latency by operation.
	DirectoryRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liveclass_directory_request_seconds",
		Help:    "Session directory REST request latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op"})

	// RelayConnections tracks the number of websocket connections held by
	// the reference relay.
	RelayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "liveclass_relay_connections",
		Help: "Current number of relay websocket connections",
	})

	// RelayMessagesTotal counts frames handled by the relay, labeled by
	// type: "published", "delivered", "invalid", "rate_limited".
	RelayMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liveclass_relay_messages_total",
		Help: "Total number of chat frames handled by the relay",
	}, []string{"type"})

	// RelayFanoutLatency records the time from receiving a chat frame to
	// delivering it to every local subscriber.
	RelayFanoutLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "liveclass_relay_fanout_seconds",
		Help:    "Relay fan-out latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ChannelsOpen,
		ChannelTransitions,
		MessagesTotal,
		DirectoryRequestDuration,
		RelayConnections,
		RelayMessagesTotal,
		RelayFanoutLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
