// Package prometheus exposes goLinkAuth engine metrics as a client_golang Collector.
//
// [NewCollector] reads [goLinkAuth.Engine.MetricsSnapshot] on every scrape. Counter
// names are golinkauth_*_total and the single histogram is
// golinkauth_auth_latency_seconds. Nothing is registered globally; callers register
// the collector or mount [Collector.Handler].
package prometheus
