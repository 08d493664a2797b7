// Package middleware exposes the HTTP adapter that guards routes with a
// goOTC session token.
//
// # Guards
//
//   - [RequireSession] reads the token from the session cookie, falling back
//     to an Authorization: Bearer header, and validates it with
//     Engine.ValidateSession.
//
// The validated session and the raw token are injected into the request
// context; read them with [SessionFromContext] and [TokenFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token parsing and
// signature checks stay in the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Touch a store. ValidateSession performs no I/O.
package middleware
