// Package internaldefs holds the metric names and bucket helpers shared by the
// Prometheus and OTel exporters, so both publish identical series.
package internaldefs
