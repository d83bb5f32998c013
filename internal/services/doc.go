// Package services defines the [Catalog] interface the orchestrator uses to reach the music provider and implements it for Spotify.
//
// # Catalog Interface
//
// Every call carries the bearer access token of the user it acts for, so a single [Catalog] serves all users
// and never holds credentials. Tests substitute an in-memory fake.
//
// # Spotify Implementation
//
// [SpotifyCatalog] builds a [spotify.Client] per call over an [oauth2.StaticTokenSource].
// Calls share one rate limiter and each runs under its own timeout. Nothing is retried here;
// the orchestrator decides whether a rejected token is worth a refresh.
//
// # Error Handling
//
// Provider failures are classified into typed errors from the shared package:
//   - [shared.NoActiveDeviceError] : a player command found no device to act on
//   - [shared.ProviderError] : any other non-success response, carrying the provider's message;
//     a 401 unwraps to [shared.ErrUnauthorized]
//   - [shared.ErrAPIRequest] : transport failures and timeouts
package services
