// Package dashboard provides the embedded web page of the import desk.
//
// The page HTML, CSS and JavaScript are included at compile time, so the
// desk ships as a single binary without external asset files.
//
// The embedded assets are served by the server package at the root path ("/").
package dashboard

import "embed"

// Assets is an embedded filesystem containing the import page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Import page with inline CSS and JavaScript
//
// The "{{.Title}}" marker in index.html is replaced with the configured
// page title and "{{.Columns}}" with the teachers table header row when
// served.
//
//go:embed assets/*
var Assets embed.FS
