// Package roster holds the teacher records returned by the staff-records
// backend and the ordering rules used when they are displayed.
//
// Records are passed through as the backend defines them. The client only
// reads named fields for display and reorders the stored slice; it never
// validates or rewrites a record.
package roster
