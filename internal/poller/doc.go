// Package poller provides the HTTP plumbing between the import desk and the
// staff-records backend.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeouts, a 1MB body
//     limit, request IDs, and multipart upload support
//   - [Poller]: Bounded-retry check that waits for the teachers endpoint to
//     return a non-empty collection
//   - [NetworkError], [HTTPError], [BusinessError], [ParseError]: the
//     failure taxonomy shared by polling and uploads
//
// Users of the importdesk library should not need to interact with this
// package directly. The error types are re-exported by the root package.
package poller
