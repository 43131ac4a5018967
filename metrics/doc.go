// Package metrics provides the gateway's Prometheus registry and the small
// HTTP server that exposes it.
package metrics
