// Package preflight provides readiness checks for the local paths, helper
// binaries, and services dubber depends on.
//
// `dubber doctor` runs RunAll and renders one status line per Result.
// Checks for optional features (media probing, notifications) are marked
// Optional so a disabled feature is reported without failing the run.
package preflight
