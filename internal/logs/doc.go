// Package logs reads the daemon log file for the CLI.
//
// LastLines returns the trailing lines of the log with the offset of its end,
// and Follow polls for lines appended after that offset. Both accept a Filter
// so `notecast logs --episode ID` can narrow output to one episode.
package logs
