// Package client implements the HTTP contract to the Mitra gateway.
//
// # Surface
//
//   - SendMessage: one chat turn, keyed by the backend session id
//   - Login / Register: account endpoints returning a compact access token
//   - CheckHealth: connectivity probe
//   - UploadDocument: multipart upload into the knowledge base
//   - RateResponse / Suggestions: feedback and follow-up helpers
//
// # Errors
//
// Transport failures and non-2xx statuses both surface as *NetworkError,
// carrying the operation name and HTTP status. Callers match with errors.As.
//
// # Timeouts
//
// The client owns timeout policy; the conversation engine deliberately
// enforces none of its own.
package client
