// Package main implements the dubber command-line client.
//
// The CLI submits a local video to a dubbing backend and follows the job
// through upload, processing, and results. A single submission runs at a
// time per state directory; a second `dubber submit` fails fast while the
// first holds the submission lock.
//
// Commands:
//   - submit: validate, upload, and follow a job (Ctrl-C cancels it)
//   - status, cancel, download: one-shot calls against an existing job
//   - history: jobs recorded by previous submissions
//   - languages: supported target languages
//   - config: sample generation, effective values, validation
//   - dev-backend: an in-memory backend for local development
//   - test-notify: send a test ntfy notification
//   - doctor: readiness checks for paths, ffprobe, and the backend
//   - logs: show or follow the log file in the state directory
//
// Global flags --config, --server, and --log-level override the file and
// environment settings for one invocation.
package main
