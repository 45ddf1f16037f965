package controller

import "errors"

// Typed errors surfaced to callers. Insert-if-absent conflicts are never
// returned; they are recovered locally and treated as success.
var (
	// ErrTokenNotFound means no campaign carries the claim token.
	ErrTokenNotFound = errors.New("claim token not found")

	// ErrBusinessNotFound means the referenced business does not exist.
	ErrBusinessNotFound = errors.New("business not found")

	// ErrTokenExpired means the token exists but is past its validity window.
	ErrTokenExpired = errors.New("claim token expired")

	// ErrAlreadyClaimed means the token's campaign already completed.
	ErrAlreadyClaimed = errors.New("business already claimed")

	// ErrInsufficientCredits means a reveal was attempted with zero balance
	// and no prior reveal for the pair.
	ErrInsufficientCredits = errors.New("insufficient lead credits")

	// ErrTokenEntropy means claim-token generation kept colliding. This is a
	// configuration/entropy fault and must abort loudly, not retry silently.
	ErrTokenEntropy = errors.New("claim token generation exhausted attempts")
)
