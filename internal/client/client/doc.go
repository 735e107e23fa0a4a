// Package client contains the CLI's building blocks for talking to the
// MindVault account server.
//
// # Overview
//
//  1. A transport-agnostic API contract (see the Client interface) covering
//     registration, email verification, login/logout, token validation,
//     password change and the profile endpoints.
//  2. A concrete HTTP implementation (see HTTPClient) that sends JSON,
//     attaches the bearer token and maps status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database with embedded goose migrations.
//
// # Error Handling
//
// Non-2xx answers are returned as *APIError, which unwraps to one of
// ErrBadRequest, ErrUnauthorized, ErrForbidden, ErrNotVerified, ErrNotFound,
// ErrConflict or ErrUnavailable. Transport failures wrap ErrUnavailable.
package client
