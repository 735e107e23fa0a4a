// Package common contains shared constants and sentinel errors used across
// MindVault components.
package common

// AuthorizationHeaderName is the HTTP header (and lower-cased gRPC metadata
// key) carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token value in the authorization header.
const BearerPrefix = "Bearer "

// Default scopes granted to access tokens issued at login.
var DefaultAccessScopes = []string{"notes:read", "notes:write", "notes:tags"}
