// Package memory implements the store interfaces in process memory.
//
// Transactions work on a private copy of the whole dataset that replaces the
// shared state on commit, so a failed unit of work leaves nothing behind.
// Writers are serialized; readers outside a transaction see the last
// committed state. Foreign keys and delete cascades mirror the PostgreSQL
// schema so services behave the same against either backend.
package memory
