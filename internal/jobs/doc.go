// Package jobs persists speechtrim processing jobs in SQLite.
//
// A job walks a fixed sequence of stages from queued to completed, or drops
// to failed from whichever stage was active. Every transition is a single
// UPDATE so readers always observe a consistent (stage, progress, status)
// triple, and the store refuses writes that would move a job backwards or
// out of a terminal state.
package jobs
