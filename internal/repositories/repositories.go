// package repositories provides the SQLite persistence layer for the
// authentication subsystem: the pending PKCE login session and the durable
// token record.
//
// Both tables are single-slot: at most one login attempt and one connected
// session exist per profile at any time.
package repositories
