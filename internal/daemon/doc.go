// Package daemon coordinates the long-running notecast process.
//
// It wires configuration, the SQLite store, the job registry, the
// transformation engine, ingestion, and the episode orchestrator into a single
// lifecycle with flock-based locking to prevent multiple instances. At start
// it fails episodes orphaned by a previous process and seeds the default
// episode template; at stop it cancels running pipelines so they fail with
// "Daemon stopped".
//
// The HTTP API lives here too. Handlers translate DTOs from internal/api into
// calls on the domain packages and map error markers from internal/services to
// status codes (400 validation, 404 not found, 422 chunking, 502 provider or
// timeout). Episode progress is exposed by a long-poll wait endpoint and a
// websocket event stream, both fed by the registry.
//
// Keep orchestration logic here: domain rules live in their own packages while
// the daemon focuses on startup, shutdown, and transport.
package daemon
