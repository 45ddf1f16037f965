package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateClaimToken(t *testing.T) {
	token, err := GenerateClaimToken()
	require.NoError(t, err)
	require.Len(t, token, ClaimTokenLength)

	for _, r := range token {
		require.True(t, strings.ContainsRune(claimTokenAlphabet, r),
			"unexpected character %q in token %q", r, token)
	}
}

func TestGenerateClaimTokenDistribution(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		token, err := GenerateClaimToken()
		require.NoError(t, err)
		seen[token] = struct{}{}
	}
	// Collisions over 36^8 values in a thousand draws would indicate a broken
	// entropy source.
	require.Len(t, seen, 1000)
}

func TestExtractClaimToken(t *testing.T) {
	url := GenerateClaimURL("https://proquote.example", "abc123xy")
	require.Equal(t, "abc123xy", ExtractClaimToken(url))

	tracked := GenerateClickTrackURL("https://proquote.example", "abc123xy", url)
	require.Equal(t, "abc123xy", ExtractClaimToken(tracked))

	require.Equal(t, "", ExtractClaimToken("https://proquote.example/pricing"))
	// Wrong token shape never matches.
	require.Equal(t, "", ExtractClaimToken("https://proquote.example/claim/TOOLONGTOKEN!"))
}

func TestValidTrackingToken(t *testing.T) {
	sig := signTrackingToken("abc123xy")
	require.True(t, ValidTrackingToken("abc123xy", sig))
	require.False(t, ValidTrackingToken("abc123xy", "forged-signature"))
	require.False(t, ValidTrackingToken("other000", sig))
}
