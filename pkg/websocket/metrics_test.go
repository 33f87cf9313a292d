package websocket

import "testing"

func TestMetricsRegistration(t *testing.T) {
	if ActiveConnections == nil {
		t.Error("ActiveConnections not registered")
	}
	if ReconnectAttemptsTotal == nil {
		t.Error("ReconnectAttemptsTotal not registered")
	}
	if ReconnectFailuresTotal == nil {
		t.Error("ReconnectFailuresTotal not registered")
	}
	if MessagesReceivedTotal == nil {
		t.Error("MessagesReceivedTotal not registered")
	}
	if MessageLatencySeconds == nil {
		t.Error("MessageLatencySeconds not registered")
	}
	if SubscriptionCount == nil {
		t.Error("SubscriptionCount not registered")
	}
}

func TestMetricsCounterIncrement(t *testing.T) {
	ReconnectAttemptsTotal.Inc()
	ReconnectFailuresTotal.Inc()
	MessagesReceivedTotal.WithLabelValues("ticker").Inc()
}

func TestMetricsGaugeSet(t *testing.T) {
	ActiveConnections.Set(1)
	SubscriptionCount.Set(1)
}

func TestMetricsHistogramObserve(t *testing.T) {
	MessageLatencySeconds.Observe(0.001)
}
