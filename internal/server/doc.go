// Package server runs the short-lived local HTTP server that completes the Spotify authorization code flow.
//
// [CallbackServer] binds the configured host and port, serves the redirect path through a [BasicRouter] and
// shuts down after the first callback. The [OAuthHandler] checks the state parameter, exchanges the code via
// [oauth2.Config.Exchange] and delivers exactly one [OAuthResult] on its channel.
//
// [Middleware] wraps handlers in reverse order (last added executes first). [RequestLogger] is the only one
// registered by default.
package server
