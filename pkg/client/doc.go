// Package client is a small HTTP client for the lookout control API, used by
// the lookout CLI.
//
// Non-2xx answers are returned as *APIError carrying the server's error
// message; errors.Is(err, ErrNotFound) holds for 404 answers.
package client
