// Package limiters provides the named, per-client limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - auth: every entry point, 20 points per hour by default.
//   - code request: RequestCode only, 5 points per hour by default.
//   - code verify: VerifyCode only, 3 points per hour by default.
//
// All limiters are keyed by client network address; an empty address is
// tracked under "unknown". A nil [AuthLimiters] permits everything.
//
// # What this package must NOT do
//
//   - Import goOTC or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
