// Command speechtrim runs the speech-trimming daemon and talks to it.
//
// "speechtrim serve" starts the daemon in the foreground. submit, status and
// list use the daemon's HTTP API; process runs one video synchronously without
// a daemon. check, config, clear and remove work on local state directly.
package main
