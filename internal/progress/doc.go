// Package progress provides the milestone event primitives, the
// non-blocking hub, and the emitter interface that crawl workers use to
// report season, designer, and look completions. Events are batched on
// a background goroutine and fanned out to pluggable sinks such as
// Prometheus metrics or structured logs.
package progress
