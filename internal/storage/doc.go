package storage

// Package storage persists the notification collection.
//
// It currently supports:
//   - "sqlite": SQLite database file (default)
//   - "memory": in-process store for tests and demos
