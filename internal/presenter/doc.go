// Package presenter turns job state into stage indicators, a progress
// percentage, and a status line.
//
// Project is a pure function from a job Snapshot to a UIState; nothing in the
// UIState is information the job does not already carry. Presenter
// implementations receive that state through Apply and must treat repeated
// identical updates as no-ops.
package presenter
