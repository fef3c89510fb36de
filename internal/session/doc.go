// Package session manages the per-upload directories the web driver works in.
//
// Each session is named by a random UUID and owns one directory under the
// uploads root. The Manager validates identifiers before they are joined onto
// a path, records activity in the SQLite index, serializes stage execution per
// session with an advisory file lock, and removes sessions that have been
// idle longer than the configured TTL.
package session
