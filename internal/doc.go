// Package internal contains helpers private to goOTC,
// chiefly secure numeric code generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for every Engine operation
//   - limiters: named per-client limiters (auth, code request, code verify)
//   - otc: one-time code lifecycle (issue, verify, sweep)
//   - rate: in-memory fixed-window primitives
//   - server: reference HTTP server wiring
//
// # What this package must NOT do
//
//   - Export types that appear in the public goOTC API.
//   - Be imported by any package outside the goOTC module.
package internal
