// Package store persists notebooks, sources, notes, insights, transformations,
// episode templates, and episodes in a single SQLite database.
//
// The schema is embedded and versioned through SQLite's user_version pragma; a
// database written by another version is rejected with ErrSchemaMismatch
// rather than migrated.
// Episode status changes are guarded UPDATEs so terminal rows are never
// rewritten, and the default transformation flag is flipped by one statement
// so readers never observe zero or two defaults mid-change.
package store
