// Package pipeline drives one job through the speech trimming stages:
// extract audio, enhance it, detect speech, filter fillers, and re-encode
// the kept spans.
//
// Each stage checkpoint is persisted before the stage does any work, so the
// recorded stage always names the step that is running or that failed. Run is
// total: every failure, including panics and shutdown, ends in a persisted
// terminal state and the per-job workspace is always removed.
package pipeline
