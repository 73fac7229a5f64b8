// Package devbackend implements a development stand-in for the dubbing
// backend.
//
// It serves the upload, status, cancel, and download routes (with or
// without an /api prefix) and advances each job through the processing
// steps as time passes. Jobs live in memory; the "dubbed" artifact is the
// uploaded file itself. A fail_at form field forces a failure once progress
// reaches the given percentage, which makes failure paths easy to exercise
// from the CLI.
package devbackend
