package store

import (
	"sync"

	"github.com/kadrsp/importdesk/internal/roster"
)

const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive updates via buffered channels. Updates are sent
// non-blocking; if a subscriber's buffer is full, the update is dropped for
// that subscriber. Each update carries the whole board, so a dropped update
// is superseded by the next one.
type MemoryStore struct {
	mu          sync.RWMutex
	board       Board
	subscribers map[chan Board]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] holding an empty board.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		board: Board{
			Teachers:          []roster.Teacher{},
			NextSortAscending: true,
			Submitting:        []string{},
		},
		subscribers: make(map[chan Board]struct{}),
	}
}

// Update stores a copy of board with the next version and notifies all
// subscribers (unless their buffer is full).
func (m *MemoryStore) Update(board Board) Board {
	board = cloneBoard(board)

	m.mu.Lock()
	board.Version = m.board.Version + 1
	m.board = board
	m.mu.Unlock()

	m.notifySubscribers(board)
	return cloneBoard(board)
}

// Get returns a snapshot of the current board. The returned value shares
// nothing with the store.
func (m *MemoryStore) Get() Board {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBoard(m.board)
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Board {
	ch := make(chan Board, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Board) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the board to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(board Board) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- cloneBoard(board):
		default:
			// subscriber is slow, drop the message
		}
	}
}

func cloneBoard(b Board) Board {
	out := b
	out.Teachers = roster.Clone(b.Teachers)
	if out.Teachers == nil {
		out.Teachers = []roster.Teacher{}
	}
	out.Submitting = append([]string{}, b.Submitting...)
	if b.Banner != nil {
		banner := *b.Banner
		out.Banner = &banner
	}
	return out
}
