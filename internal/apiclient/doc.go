// Package apiclient is the typed HTTP client the CLI uses to talk to the
// notecast daemon.
//
// Error responses are decoded into *APIError, whose Unwrap maps the response
// code back onto the services error markers so callers can use errors.Is the
// same way they would against in-process calls. Connection failures are
// reported by IsUnavailable.
package apiclient
