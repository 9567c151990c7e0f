// Package daemon coordinates the long-running speechtrim process.
//
// It wires configuration, the job store, the worker pool, intake and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. On start it fails jobs a previous process left mid-pipeline,
// sweeps orphaned workspaces and re-dispatches queued jobs; while running a
// janitor removes stale workspaces.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown and high level coordination.
package daemon
