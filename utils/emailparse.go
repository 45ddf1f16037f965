package utils

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
)

// emailPattern matches a standard local@domain.tld address with a 2+ letter
// TLD. Also used to extract an address out of surrounding junk text.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// NormalizeEmailField parses a legacy multi-format email field into an
// ordered, deduplicated list of valid lowercase addresses. The first element
// is treated as the primary contact when persisted.
//
// Formats seen in imports: a JSON array of strings, semicolon-separated,
// comma-separated, or a single value with junk text glued onto the address.
func NormalizeEmailField(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	candidates := splitCandidates(raw)

	var out []string
	seen := make(map[string]struct{})
	for _, candidate := range candidates {
		email, ok := cleanCandidate(candidate)
		if !ok {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

func splitCandidates(raw string) []string {
	if strings.HasPrefix(raw, "[") {
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr
		}
		// Not valid JSON after all; fall through to separator handling.
	}
	if strings.Contains(raw, ";") {
		return strings.Split(raw, ";")
	}
	if strings.Contains(raw, ",") {
		// A comma is only a separator when every piece looks like an
		// address; otherwise it is part of a single malformed value.
		pieces := strings.Split(raw, ",")
		allEmails := true
		for _, p := range pieces {
			if !strings.Contains(p, "@") {
				allEmails = false
				break
			}
		}
		if allEmails {
			return pieces
		}
	}
	return []string{raw}
}

// cleanCandidate trims, strips wrapping quotes, collapses whitespace runs,
// extracts the embedded address when junk is glued on, and validates it.
func cleanCandidate(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	candidate = strings.Trim(candidate, `"'`)
	candidate = strings.Join(strings.Fields(candidate), " ")
	if candidate == "" {
		return "", false
	}

	email := emailPattern.FindString(candidate)
	if email == "" {
		return "", false
	}
	email = strings.ToLower(email)

	if err := checkmail.ValidateFormat(email); err != nil {
		return "", false
	}
	return email, true
}
