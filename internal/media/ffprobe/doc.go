// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Intake uses it to confirm that a file holds a video stream with a usable
// duration before the file is uploaded.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties and tags
//   - Format: container-level metadata (duration, size, bitrate)
//
// Helper methods on Result provide stream counts, duration parsing, and the
// source audio language.
package ffprobe
