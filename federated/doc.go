// Package federated verifies identity assertions issued by a trusted OpenID
// Connect provider and extracts the email, display name and subject.
//
// An assertion is an ID token (JWT signed with RS256, RS384, RS512, ES256 or
// ES384). [Verifier] checks the signature against a [KeySource], the audience,
// the issuer set, exp and iat. Keys come either from a fixed [StaticKeys] set
// or from a provider's published JWKS document via [JWKS], which caches keys
// and refetches when it sees an unknown kid.
//
// Google sign-in is the reference deployment:
//
//	keys := federated.NewJWKS(federated.GoogleJWKSURL)
//	v, err := federated.NewVerifier(federated.Config{
//		Audience: clientID,
//		Issuers:  federated.GoogleIssuers,
//	}, keys)
package federated
