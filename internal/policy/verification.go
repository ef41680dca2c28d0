package policy

import "strings"

// verificationExemptPaths can be visited by a logged-in user whose email
// address is not verified yet. Everything under /accounts is exempt so the
// user can actually complete verification, log out, or re-request the email.
var verificationExemptPaths = []string{
	"/",
	"/blogs",
	"/accounts",
	"/static",
	"/health",
}

// RequiresVerifiedEmail reports whether the given browser path is gated
// behind email verification. API routes are never gated here: they respond
// with an EMAIL_NOT_VERIFIED error instead of a redirect.
func RequiresVerifiedEmail(path string) bool {
	if strings.HasPrefix(path, "/api/") {
		return false
	}
	for _, exempt := range verificationExemptPaths {
		if path == exempt || (exempt != "/" && strings.HasPrefix(path, exempt+"/")) {
			return false
		}
	}
	return true
}
