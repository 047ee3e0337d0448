// Package metrics provides observability hooks for session fetch cycles and persistence.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	coord := session.NewCoordinator(client, session.WithRecorder(metrics.NoopRecorder{}))
//
// When metrics are enabled the CLI swaps in a PrometheusRecorder and mounts
// HTTPHandler on /metrics.
package metrics
