// Package server provides the HTTP server for the local import page.
//
// This package handles all HTTP concerns of the page:
//
//   - Page serving: Serves the embedded HTML/CSS/JS page at "/"
//   - REST API: JSON board snapshot at "/api/board"
//   - Server-Sent Events: Board updates at "/api/sse"
//   - Forms: "/upload/teachers", "/upload/curriculum", "/sort" and "/poll"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// The server is started by [importdesk.Desk.Serve].
package server
