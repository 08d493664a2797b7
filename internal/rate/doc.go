// Package rate provides the fixed-window, per-key quota tracker used to gate
// every goOTC entry point.
//
// # Window semantics
//
// A window opens on the first consumption for a key and stays open for the
// configured duration. Points consumed inside an open window accumulate; a
// consumption that would push the total past capacity is denied and does not
// count. The window resets only once its full duration has elapsed since it
// opened (fixed window, not sliding).
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Persist or share state across processes.
package rate
