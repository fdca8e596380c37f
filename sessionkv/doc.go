// Package sessionkv provides session-scoped string key/value stores.
//
// A store outlives a full environment reload but not the session it belongs to:
// backends scope every key by an explicit session id, so a new session id sees an
// empty store.
//
// Backends:
// - Memory: process-local map, survives in-process reloads
// - Redis: prefixed keys with a TTL equal to the session lifetime
// - Postgres: one row per (session, key)
// - SQLite: same schema as Postgres on a local file
package sessionkv
