// Package preflight provides readiness checks for the external commands and
// filesystem paths uploadflow depends on.
//
// The CLI driver refuses to start a run while a required command is missing,
// the web daemon checks its directories at startup, and both "uploadflow check"
// and the /api/health endpoint render the same results.
package preflight
