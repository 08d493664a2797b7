// Package redisstore implements store.CodeStore and store.IdentityStore on
// Redis.
//
// Codes are hashes under "<prefix>:code:<id>" with a TTL equal to their
// lifetime. Each email keeps a set of its code ids, and a sorted set scored
// by expiry lets DeleteExpired find stale codes without scanning.
// Identities are hashes under "<prefix>:identity:<id>" with an email index
// updated under WATCH, so concurrent upserts for one email resolve to a
// single identity or report store.ErrConflict.
package redisstore
