package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	// ClaimTokenLength is the claim-token size; tokens appear in public URLs.
	ClaimTokenLength = 8

	claimTokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateClaimToken produces a random lowercase alphanumeric token.
// Uniqueness across campaigns is enforced by the caller against the database.
func GenerateClaimToken() (string, error) {
	buf := make([]byte, ClaimTokenLength)
	max := big.NewInt(int64(len(claimTokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = claimTokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
