// Package ffmpeg runs the media tool operations of the trimming pipeline:
// audio extraction, audio denoising, and trim-and-concatenate re-encoding.
//
// Every operation is a single blocking ffmpeg process. A non-zero exit is
// reported as a tool failure carrying the tail of the tool's output; nothing
// is retried.
package ffmpeg
