// Package stages defines the fixed, ordered dubbing pipeline stages and the
// progress thresholds that select them.
//
// The registry is the only place progress percentages are compared against
// stage boundaries. Everything else (the workflow controller, the presenter
// projection, CLI rendering) asks For and trusts the answer, so threshold
// changes happen in one table.
package stages
