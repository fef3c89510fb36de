// Package web serves the browser-driven variant of the pipeline.
//
// Every request locates its session directory from a signed cookie (or the
// URL for downloads and the JSON API) and recomputes progress from the files
// in that directory, so no pipeline state lives in memory between requests.
// Requests that run stages hold the session's file lock for their duration.
package web
