package store

import (
	"time"

	"github.com/kadrsp/importdesk/internal/roster"
)

// Banner is the status message shown above the table.
type Banner struct {
	// Kind is "info", "success" or "danger".
	Kind string `json:"kind"`

	Message string `json:"message"`

	ShownAt time.Time `json:"shown_at"`

	// ExpiresAt is nil for banners that stay until replaced.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Visible reports whether the banner should still be displayed at now.
func (b *Banner) Visible(now time.Time) bool {
	if b == nil {
		return false
	}
	return b.ExpiresAt == nil || now.Before(*b.ExpiresAt)
}

// Board is the full display state of the import desk page.
//
// Board is optimized for JSON serialization (used by the REST API and SSE).
type Board struct {
	// Version increases by one with every update.
	Version uint64 `json:"version"`

	Teachers []roster.Teacher `json:"teachers"`

	// TableHTML is the rendered table body for Teachers.
	TableHTML string `json:"table_html"`

	// Banner is nil when nothing has been reported yet.
	Banner *Banner `json:"banner"`

	// NextSortAscending is the direction the next sort toggle will use.
	NextSortAscending bool `json:"next_sort_ascending"`

	// Submitting lists the forms whose submit control is disabled.
	Submitting []string `json:"submitting"`
}

// Store defines the interface for storing and subscribing to board updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected pages
// (e.g., via Server-Sent Events).
type Store interface {
	// Update replaces the board and notifies all subscribers. The stored
	// Version is assigned by the store.
	Update(board Board) Board

	// Get returns the current board.
	Get() Board

	// Subscribe returns a channel that receives board updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Board

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Board)
}
