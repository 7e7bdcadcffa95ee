/*
Package metrics provides Prometheus metrics and health endpoints for lookout.

All metrics are package-level variables registered with the default Prometheus
registry at init and exposed through Handler, normally mounted at /metrics.

# Metric Families

Sources:

	lookout_sources_total{state}                   gauge, sampled by Collector
	lookout_source_iterations_total{result}        success, failure, unexpected
	lookout_source_iteration_duration_seconds      histogram
	lookout_source_halts_total{reason}             threshold, unexpected, auto_started

Distribution:

	lookout_events_published_total{kind}           data, error, reload
	lookout_deliveries_total{result}               sent, failed, skipped
	lookout_delivery_queue_depth                   gauge
	lookout_cached_events                          gauge
	lookout_connections_open                       gauge

Other:

	lookout_nightly_runs_total{job}
	lookout_api_requests_total{method,status}
	lookout_api_request_duration_seconds{method}

# Timing

Timer wraps the common start/observe pattern:

	timer := metrics.NewTimer()
	ev, err := producer.Produce(ctx)
	timer.ObserveDuration(metrics.SourceIterationDuration)

# Collector

Gauges that describe current state are sampled every 15 seconds by a Collector
from a SourceReporter (the manager) and a DistributionReporter (the
distributor). Counters are incremented inline by the code that observes the
event.

# Health

Components report their state with RegisterComponent and UpdateComponent.
GetHealth is unhealthy when a critical component fails and degraded when only
optional components fail. GetReadiness is ready once storage, distributor and
api are all registered and healthy. HealthHandler, ReadyHandler and
LivenessHandler serve these as JSON.
*/
package metrics
