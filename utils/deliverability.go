package utils

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/badoux/checkmail"
)

// Disposable-inbox domains that would waste an outreach send. Imported listing
// data occasionally carries these.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"temp-mail.org":     {},
	"throwawaymail.com": {},
	"yopmail.com":       {},
	"getnada.com":       {},
	"trashmail.com":     {},
	"sharklasers.com":   {},
	"dispostable.com":   {},
	"maildrop.cc":       {},
}

// Deliverable reports whether an address is worth sending outreach to:
// well-formed and not a known disposable domain. It performs no network I/O.
func Deliverable(email string) bool {
	if err := checkmail.ValidateFormat(email); err != nil {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	_, disposable := disposableDomains[domain]
	return !disposable
}

// DomainAcceptsMail checks that the address's domain publishes MX records (or
// an A record fallback). DNS trouble counts as acceptance so a flaky resolver
// never suppresses outreach.
func DomainAcceptsMail(ctx context.Context, email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]

	resolver := net.DefaultResolver
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	mx, err := resolver.LookupMX(ctx, domain)
	if err == nil {
		return len(mx) > 0
	}
	if dnsErr, ok := err.(*net.DNSError); ok && dnsErr.IsNotFound {
		if addrs, aErr := resolver.LookupHost(ctx, domain); aErr == nil {
			return len(addrs) > 0
		}
		return false
	}
	return true
}
