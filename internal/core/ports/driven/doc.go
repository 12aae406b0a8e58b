// Package driven defines the driven ports (outbound interfaces) of tagwatch.
// Adapters under internal/adapters/driven implement these interfaces to
// connect to real platforms, LLM backends, and storage.
package driven
