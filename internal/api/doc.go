// Package api is the HTTP surface of the daemon: upload and status routes,
// job listings, processed-video downloads and a daemon status summary. It also
// carries the wire types and a Client the CLI uses to talk to a running daemon.
//
// Upload and status routes keep the paths existing front-ends poll
// (/api/videos/upload/, /api/videos/status/{id}/). JSON keys are snake_case
// and timestamps are RFC3339 with milliseconds.
package api
