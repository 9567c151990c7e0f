// Package intake accepts uploaded videos, validates them, and turns them into
// queued jobs handed to the worker pool.
package intake
