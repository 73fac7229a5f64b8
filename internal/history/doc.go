// Package history persists a local record of submitted dubbing jobs in
// SQLite.
//
// The backend keeps job state only in memory, so the history database is
// the client's way to find a job ID again after the terminal session ends.
// Recorder adapts the store to a workflow.Listener so the controller's
// events flow straight into it.
package history
