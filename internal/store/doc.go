// Package store holds the import desk's display state and fans updates out
// to connected pages.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Board]: The records, rendered table, banner and form state
//
// The store is designed for concurrent access. Subscribers receive updates
// via channels with non-blocking sends (slow subscribers will miss updates
// rather than block the desk).
package store
