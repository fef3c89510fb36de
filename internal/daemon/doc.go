// Package daemon coordinates the long-running uploadflowd process.
//
// It wires configuration, the session index, the session reaper, and the web
// server into a single lifecycle with flock-based locking to prevent multiple
// instances from sharing one uploads root.
//
// Keep orchestration logic here: request handling lives in internal/web and
// pipeline stages in internal/pipeline, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
