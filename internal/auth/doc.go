// Package auth owns the OAuth2 credential lifecycle for the primary source:
// the one-time interactive authorization-code grant, durable token storage,
// and transparent refresh.
//
// # Lifecycle
//
// A credential moves through five states, reported by [Manager.CheckAuth]:
//
//  1. unauthenticated: no stored credential exists
//  2. authorizing: the interactive grant is in flight
//  3. authenticated: a usable access token is on hand
//  4. refresh_pending: the access token entered the expiry margin and a refresh is in flight
//  5. revoked: the credential was deleted or the provider rejected the refresh token
//
// Only [Manager.Authorize] leaves the unauthenticated and revoked states.
//
// # Token access
//
// [Manager.GetValidToken] is the single entry point for token reads. It
// returns the stored token while at least the safety margin of validity
// remains and refreshes it otherwise. Concurrent callers serialize on one
// mutex, so N simultaneous reads of an expiring token produce exactly one
// refresh.
//
// A refresh rejected by the provider surfaces as a reauthentication error;
// the caller must run the interactive grant again. Transport failures keep
// the credential and surface as source availability errors.
//
// # Storage
//
// [Store] keeps the credential as a JSON file, by default under the user
// config directory. Writes go through a temp file and rename, so a crash
// mid-write never truncates the stored credential.
package auth
