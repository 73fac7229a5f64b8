// Package workflow owns the lifecycle of one dubbing job on the client side.
//
// The Controller submits a file to the backend, polls job status on a
// ticker, maps numeric progress onto the stage pipeline, and drives the
// shell and presenter through success, failure, and user cancellation.
// It is the only component that holds job state; everything else reads
// projections of it or receives Events.
//
// Concurrency: controller state sits behind one mutex. Each submitted job gets
// one poll goroutine with its own context.CancelFunc; polls within a loop are
// sequential. Teardown is idempotent and bumps a generation counter so late
// responses from a torn down loop are dropped. Every poll also carries a
// sequence number and responses older than the last applied one are ignored.
package workflow
