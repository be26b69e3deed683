// Command notecast is the command line interface for the notecast daemon.
//
// `notecast serve` runs the daemon in the foreground. Every other command
// talks to a running daemon over its HTTP API: notebooks, sources, notes,
// transformations and insights, episode templates, and episodes (request,
// watch, download, remove). Pass --json to any listing command for machine
// readable output.
package main
