// Package workflow runs queued jobs through the pipeline on a fixed pool of
// workers.
//
// The Manager owns a bounded backlog. Submissions beyond it are refused with
// ErrQueueFull rather than blocking the caller. Jobs the store still lists as
// queued (for example after a restart, or after a burst overflowed the
// backlog) are picked up whenever a worker frees up. Stop cancels in-flight
// runs, which terminates their child processes, and waits for every worker.
package workflow
