// Package jobs is the episode job registry: every status write goes through
// it, is persisted first, and is then published to per-episode watchers and
// registered listeners.
//
// The store remains the single source of truth. The registry keeps no copy of
// episode lists; Watch and Wait deliver the latest persisted snapshot and
// coalesce intermediate updates for slow consumers, but never drop a terminal
// state.
package jobs
