// Package security derives a posture report from an Engine configuration.
// It has no dependencies on goOTC so the root package can import it.
package security
