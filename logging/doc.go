// Package logging provides a minimal logging interface and adapters for docchat.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the router, the agents and the tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	r := router.New(chat, loop, router.WithLogger(logger))
//
// Event names are dotted (router.classified, tool.call.error) so they can be
// filtered without parsing free text.
package logging
