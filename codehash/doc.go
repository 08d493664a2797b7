// Package codehash hashes and verifies one-time code secrets.
//
// # Algorithms
//
//   - bcrypt (default, cost 10): output is the standard $2a$ modular crypt string.
//   - argon2id: output is a PHC string,
//     $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification constant-time compares the recomputed digest.
//
// # What this package must NOT do
//
//   - Store or retrieve codes; callers supply plaintext and receive hashes.
//   - Log plaintext codes or hash parameters.
package codehash
