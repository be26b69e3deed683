// Package transform applies catalog transformations to sources and records
// the generated insights.
//
// Apply is synchronous: it either appends exactly one new insight or returns
// an error having written nothing. Repeated runs append rather than replace,
// so a source keeps the history of every run.
package transform
