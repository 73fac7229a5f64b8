// Package intake validates a local media file and target language before
// anything is sent to the dubbing backend.
//
// Checks run cheapest first: existence and read access, the configured size
// limit, a content sniff that must report a video/* type, and optionally an
// ffprobe pass confirming a video stream with a known duration. Every
// rejection is marked services.ErrValidation so callers can show it without
// touching the job lifecycle.
package intake
