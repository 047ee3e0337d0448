// Package errors provides foundational, type-safe error primitives used across stargazer.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, network, storage, canceled, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior (never, immediate, backoff, user)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - HTTP and CLI adapters for error presentation
//
// Example usage:
//
//	err := errors.NetworkError("visibility service unreachable").
//		WithCause(dialErr).
//		WithContext("base_url", baseURL).
//		Build()
package errors
