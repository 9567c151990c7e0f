// Package preflight provides readiness checks for the filesystem paths, model
// file and external binaries speechtrim depends on.
//
// The daemon runs them at startup and reports them on /api/status; the CLI
// "check" command renders them as a table.
package preflight
