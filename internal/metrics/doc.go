// Package metrics exports job outcomes, poll failures, and live progress as
// Prometheus metrics. The CLI is short-lived, so metrics are written to a
// node_exporter textfile instead of being served.
package metrics
