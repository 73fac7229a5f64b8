// Package logs tails the dubber log file for `dubber logs`.
//
// LastLines reads the final N lines with bounded memory, ReadFrom resumes
// at a byte offset, and Follow streams appended lines until the context
// ends. A file that shrinks below the saved offset is treated as rotated
// and read again from the start.
package logs
