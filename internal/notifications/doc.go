// Package notifications delivers episode events via ntfy.
//
// NewService publishes to the topic configured in config.toml and degrades to
// a no-op when no topic is set. Callers emit an Event with a Payload; the
// service owns message formatting and drops events the configuration
// suppresses, so daemon code never deals with HTTP details.
package notifications
