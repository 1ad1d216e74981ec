// Package storage provides audit.Storage backends.
//
// MemoryStorage keeps entries in a map and is meant for tests and ephemeral
// deployments. SQLiteStorage persists entries with github.com/mattn/go-sqlite3
// in WAL mode; a trigger rejects UPDATE statements so the table stays
// append-only, and PurgeExpired is the only DELETE path.
package storage
