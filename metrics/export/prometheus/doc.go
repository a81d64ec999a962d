// Package prometheus exposes goAccounts engine counters as a prometheus.Collector.
//
// [NewCollector] reads [goAccounts.Engine.MetricsSnapshot] on every scrape. Counter
// names are goaccounts_*_total; the single histogram is
// goaccounts_password_hash_latency_seconds. Register the collector on your own
// registry or mount [Collector.Handler].
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
