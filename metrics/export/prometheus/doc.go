// Package prometheus renders goAccount engine metrics in Prometheus text
// exposition format.
//
// Counters are named goaccount_*_total; the single histogram is
// goaccount_authenticate_latency_seconds. Callers mount [PrometheusExporter.Handler]
// wherever they expose metrics.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry.
//   - Mutate engine state.
package prometheus
