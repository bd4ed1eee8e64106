package auth

import (
	"net/http"
	"strings"
)

const TokenHeader = "X-RTA-TOKEN"

// TokenFromRequest reads the session token from the X-RTA-TOKEN header,
// falling back to an Authorization bearer token.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(TokenHeader)); token != "" {
		return token
	}
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
