// Package goOTC provides passwordless email login with one-time codes,
// federated sign-in through an identity provider's signed assertion, and
// stateless signed session tokens.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goOTC is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (LoginResult, IdentitySummary, MetricsSnapshot). Flow
// orchestration, code hashing policy, rate limiting and audit dispatch live
// under internal/ and are never exported. Storage backends live under store/
// and delivery channels under dispatch/.
//
// # What this package must NOT do
//
//   - Return or log a plaintext code outside the dispatcher, except through
//     Development.LogPlaintextCodes outside ProductionMode.
//   - Persist anything but a salted hash of a code.
//   - Import any sub-package that re-imports goOTC (no import cycles).
//
// # Performance contract
//
// ValidateSession is the hot path. It performs no I/O and is not rate
// limited. RequestCode and VerifyCode each perform one hash operation and a
// small, fixed number of store round-trips.
package goOTC
