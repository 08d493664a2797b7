// Package jwt issues and verifies the stateless session tokens returned after a
// successful login.
//
// Tokens carry the identity id as sub, the verified email, iat, exp and a
// random jti. HS256 with a secret of at least 32 bytes is the default;
// Ed25519 is available for deployments that distribute verify keys.
// Parsing fails closed: signature, algorithm, issuer, audience or structure
// problems all surface as ErrTokenInvalid, expiry as ErrTokenExpired.
package jwt
