// Package server provides HTTP routing, middleware, account linking and the playback command API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /health").
//
// [NewRouter] assembles the full boundary: [Logging] (with an X-Request-ID per request) and [Recover] middleware, /health, /metrics,
// the [OAuthHandler] and the [CommandHandler].
//
// # Account Linking
//
// [OAuthHandler] implements the OAuth2 authorization code flow for many users at once.
// /link binds a random state to the caller's user id in a [StateStore] and redirects to the consent page.
// /callback consumes the state, so a replayed or expired callback is rejected, and exchanges the code for
// the user it was bound to. Each completed link is announced on [OAuthHandler.Linked], which the CLI
// link command waits on.
//
// # Command API
//
// [CommandHandler] takes the caller's identity from the X-User-ID header and returns the orchestrator's
// status line as text/plain. Failures of the request itself (no identity, unreadable body) use HTTP status
// codes; playback failures are part of the 200 response text.
//
//	POST /api/command   free text, routed by the dispatcher
//	POST /api/play      body is the search query
//	POST /api/playlist  body is the playlist name
//	POST /api/pause | /api/resume | /api/skip
//	GET  /api/devices
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
