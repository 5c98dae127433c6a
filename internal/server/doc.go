// Package server implements the core session and broadcast engine for
// lanchat.
//
// The implementation is organized into specialized files for configuration,
// the hub, clients, the registry, the history cache, the blob store, and
// HTTP routing to keep the codebase maintainable and testable as the
// project grows.
package server
