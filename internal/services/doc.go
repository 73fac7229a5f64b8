// Package services defines shared utilities consumed by the workflow
// controller and the backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (retryable, validation, rejected) and paired with an
//     operator hint.
package services
