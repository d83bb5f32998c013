// Package repositories implements SQLite persistence for the credential table and pending account links.
//
// Key Implementations:
//   - [CredentialRepository] : one row per linked user, written through by the credential store
//   - [LinkStateRepository] : short-lived OAuth state values bound to the user who started the link
//
// Lookups that find nothing return an error wrapping [ErrNotFound].
package repositories
