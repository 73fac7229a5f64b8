// Package dubbing is the HTTP client for the dubbing backend.
//
// It covers the four backend routes: multipart upload, job status, best-effort
// cancel, and artifact download. Every request carries an X-Request-ID
// correlation header. Non-2xx replies surface as *HTTPStatusError, which
// unwraps to the services error markers; 2xx bodies that fail to decode or
// validate surface as ErrMalformedResponse.
package dubbing
