// Package store archives assignment runs in SQLite.
//
// Each run is written in a single transaction: the run row, every
// per-sample assignment, the exception lists, and the cross-validation
// conflicts all land together or not at all. The archive exists for
// after-the-fact inspection (the report command) and for comparing runs
// over time; the assignment passes themselves never read from it.
//
// The database uses WAL mode so reports can read while a run is being
// archived, and a single write connection to avoid SQLITE_BUSY.
package store
