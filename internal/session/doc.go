// Package session owns the credential lifecycle glue between the credential
// store, the token handshake and the backend client. It is shared by every
// CLI command that talks to the backend.
//
// Manager tracks where the credential set stands (no session, awaiting login,
// valid tokens, refreshing, manual), regenerates tokens when they are blank,
// expired or rejected, and retries a rejected query exactly once. Concurrent
// refreshes collapse into a single handshake so two derivations never race to
// overwrite each other's tokens.
package session
