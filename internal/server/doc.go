// Package server exposes the dailyshuffle engine over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// "METHOD /path" patterns on an [http.ServeMux], so a wrong method answers 405.
//
// [Middleware] added with Use wraps every route, first added outermost. Middleware passed to
// Handle wraps only that route, inside the router-wide stack.
//
// # Sessions
//
// [RequireSession] and [OptionalSession] read the sessionToken and uid cookies, validate them with a
// [SessionChecker] and rewrite both cookies with the returned token and expiry, which change on rotation.
// Handlers read the session with [SessionFromContext].
//
// # Routes
//
//	GET  /               session info
//	GET  /auth           start authorization, sets the verifier cookie
//	GET  /callback       finish authorization and start a session
//	GET  /logout         end the session
//	GET  /userPlaylists  playlists visible to the user
//	GET  /userJobs       the user's jobs with playlist names
//	POST /jobs           action=add|update|delete with source and destination
//	POST /run            run a shuffle pass over every job
//	GET  /healthz        liveness, pings the database
//
// Service errors map to 400, 401, 403, 404 or 500 and are written as plain text. JSON bodies are
// used for successful responses.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
