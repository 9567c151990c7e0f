// Package logging builds the slog loggers shared by the speechtrim daemon and CLI.
//
// Two handlers are available: a human-oriented console format that lifts the
// component, job and stage into a header line, and a JSON format for log
// shippers. Context helpers pull job and request identifiers out of
// context.Context so pipeline code does not have to thread them by hand.
package logging
