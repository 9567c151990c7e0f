// Package speech detects timed speech segments in an audio file by running a
// whisper.cpp compatible command line transcriber.
//
// A Model is loaded once per process and shared read-only by every Detector.
// Detectors never retry: any tool failure, unreadable output, or empty result
// is reported as a detection failure.
package speech
