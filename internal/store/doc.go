// Package store defines the persistence contracts for tasks, their audit
// trail, notifications, and the user and team directories.
//
// Multi-step mutations run through a Transactor, which hands the callback a
// Stores bundle bound to a single transaction. Implementations live under
// internal/platform.
package store
