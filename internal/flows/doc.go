// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunRequestCode, RunVerifyCode, RunFederatedLogin,
// RunCurrentIdentity, RunEndSession) accepts a [Deps] value and returns
// results without side-effects beyond those dependencies. Flow states are
// recorded in audit metadata under the "state" key.
//
// # Architecture boundaries
//
// Flow functions coordinate the rate limiters, the one-time code service,
// the federated verifier, the identity store and the session issuer. They do
// NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goOTC (to avoid import cycles).
//   - Retry anything except identity upserts that lose a uniqueness race.
package flows
