// Package auth manages user credentials: OAuth access tokens, the PKCE authorization
// code flow that creates them, and the browser session tokens that authorize requests.
//
// # Token Lifecycle
//
// [TokenManager.ValidAccessToken] returns a stored access token while it remains valid
// beyond a safety window and otherwise exchanges the refresh token through
// golang.org/x/oauth2. Refreshes for one user are serialized with a per-user mutex so two
// callers never both spend a refresh token the provider may rotate. The same
// [shared.KeyedMutex] guards session rotation and the credential upsert that ends
// authorization, so every read-modify-write of a user's row runs alone.
//
// # Authorization
//
// [Authorizer.Start] creates a single-use PKCE verifier held in a [VerifierStore] and
// returns the provider's authorize URL. [Authorizer.Complete] consumes the verifier,
// exchanges the callback code and upserts the user's [models.Credential].
//
// # Sessions
//
// [SessionAuthenticator] issues and checks session tokens. A checked token is rotated and
// the previous token stays accepted for a short grace window so that requests racing a
// cookie update still succeed.
package auth
