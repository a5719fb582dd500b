// Package importdesk provides the operator front end of the staff records
// backend: spreadsheet uploads, a bounded wait for imported teachers and a
// sortable teachers table served on a local web page.
//
// The package is SDK-first. A [Desk] owns all display state and can be
// driven directly from Go code, from the importdesk CLI or through the
// embedded page.
//
// # Quick Start
//
// Create a desk and serve the page with graceful shutdown:
//
//	desk, _ := importdesk.New(importdesk.WithBaseURL("http://localhost:8000"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	desk.Serve(ctx) // blocks until context is cancelled
//
// # Configuration
//
// The desk uses the functional options pattern for configuration:
//
//	desk, err := importdesk.New(
//	    importdesk.WithBaseURL("https://kadrsp.example.com"),
//	    importdesk.WithHeaders("Authorization", "Bearer "+token),
//	    importdesk.WithPollInterval(2 * time.Second),
//	    importdesk.WithMaxAttempts(10),
//	    importdesk.WithCurriculumSheets("ПланСвод", "План"),
//	    importdesk.WithSheetVerification(true),
//	)
//
// # Operations
//
//   - [Desk.UploadTeachers]: submit a teachers import, then poll until records appear
//   - [Desk.UploadCurriculum]: submit an .xlsx curriculum and report the imported count
//   - [Desk.PollTeachers]: bounded-retry wait for a non-empty teachers list
//   - [Desk.LoadTeachers]: one-shot table load
//   - [Desk.SortByName]: stable name sort that flips direction on every call
//
// Every operation reports to the operator through a [Banner] on the
// [Board]. Failures are also returned as errors from the taxonomy in
// errors.go: [NetworkError], [HTTPError], [BusinessError] and [ParseError].
//
// # Architecture
//
// The desk consists of several internal packages (under internal/):
//
//   - internal/poller: HTTP client, error taxonomy and the bounded-retry poller
//   - internal/upload: upload validation, submission and workbook checks
//   - internal/roster: teacher records and the sort toggle
//   - internal/render: HTML table body rendering
//   - internal/store: In-memory board storage with pub/sub for real-time updates
//   - internal/server: HTTP server with form endpoints and Server-Sent Events
//   - internal/devbackend: local stand-in for the records backend
//   - dashboard: Embedded web page assets
//
// The internal packages are not part of the public API and may change
// without notice.
package importdesk
