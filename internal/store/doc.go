// Package store provides durable client-side persistence for conversations
// and local auth state.
//
// # Storage model
//
// Everything lives in one BoltDB file. The conversation collection is a
// single JSON array under one key in the "sessions" bucket; every Save is a
// full rewrite of that key. The "auth" bucket holds the compact access token
// and the guest-mode flag.
//
// # Ordering
//
// List order is upsert history, newest-saved first. Saving an existing id
// replaces it in place without moving it. The order is deliberately not
// re-derived from updated_at at read time; list views show exactly what the
// save history produced.
//
// # Corruption policy
//
// Entries that fail to decode are dropped with a warning instead of failing
// the whole load, so one corrupt record never blocks the rest of the history.
package store
