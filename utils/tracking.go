package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"

	"github.com/google/uuid"
)

// claimURLPattern extracts a claim token embedded in an outreach URL. Used as
// a fallback when a provider webhook carries no token metadata.
var claimURLPattern = regexp.MustCompile(`/claim/([a-z0-9]{8})`)

// GenerateClaimURL builds the public claim-page URL for a token.
func GenerateClaimURL(baseURL, token string) string {
	return fmt.Sprintf("%s/claim/%s", baseURL, token)
}

// GenerateOpenPixelURL builds the tracking-pixel URL embedded in a claim
// email to record opens.
func GenerateOpenPixelURL(baseURL, token string) string {
	return fmt.Sprintf("%s/track/open/%s/%s", baseURL, token, signTrackingToken(token))
}

// GenerateClickTrackURL wraps a destination URL so clicks are recorded before
// redirecting.
func GenerateClickTrackURL(baseURL, token, originalURL string) string {
	return fmt.Sprintf("%s/track/click/%s/%s?url=%s",
		baseURL, token, signTrackingToken(token), url.QueryEscape(originalURL))
}

// ExtractClaimToken pulls a claim token out of an embedded URL, returning ""
// when none is present.
func ExtractClaimToken(embeddedURL string) string {
	m := claimURLPattern.FindStringSubmatch(embeddedURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// NewReferenceID returns an opaque public identifier for customer-facing
// records.
func NewReferenceID() string {
	return uuid.New().String()
}

func signTrackingToken(token string) string {
	hash := sha256.Sum256([]byte("proquote-track:" + token))
	return base64.URLEncoding.EncodeToString(hash[:])[:20]
}

// ValidTrackingToken verifies the signature segment of a tracking URL.
func ValidTrackingToken(token, signature string) bool {
	return signTrackingToken(token) == signature
}
