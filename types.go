package goOTC

import (
	"time"

	"github.com/MrEthical07/goOTC/store"
)

// CodeRequestResult describes a stored code. It never carries the code.
type CodeRequestResult struct {
	Email     string
	ExpiresAt time.Time
}

// IdentitySummary is the client-facing view of an identity.
type IdentitySummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
}

// LoginResult is returned by VerifyCode and FederatedLogin.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  IdentitySummary
}

// Session is the validated content of a session token.
type Session struct {
	IdentityID string
	Email      string
	ExpiresAt  time.Time
}

func summarize(id store.Identity) IdentitySummary {
	return IdentitySummary{
		ID:       id.ID,
		Email:    id.Email,
		Name:     id.Name,
		Provider: string(id.Provider),
	}
}
