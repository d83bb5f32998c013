// Package auth owns per-user delegated-access credentials.
//
// [Store] is the thread-safe credential table, an in-memory cache written through to an optional [Backend].
// [Manager] drives the token lifecycle against the provider's token endpoint:
//
//   - [Manager.ExchangeCode] turns an authorization code into a stored credential
//   - [Manager.ValidToken] returns a usable access token, refreshing it when it is within the expiry skew
//   - [Manager.ForceRefresh] refreshes after the provider rejected a token it still considered fresh
//   - [Manager.Unlink] forgets a user
//
// Refreshes for one user are serialized by a per-user lock held only across the network call,
// so concurrent callers share a single refresh. Consecutive refresh failures are counted per user;
// when the budget is exhausted the credential is deleted and the user must link again.
package auth
