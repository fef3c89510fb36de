// Package sessionstore persists the index of web sessions in SQLite.
//
// The session directories on disk remain the source of truth for pipeline
// progress; the index only records when each session was created and last
// touched so expired sessions can be found without walking the uploads root.
// Migrations are embedded, numbered by file name prefix, and tracked with
// PRAGMA user_version.
package sessionstore
