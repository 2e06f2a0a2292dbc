package token

import (
	"net/http"
	"strings"
)

// Hosting environments expose request headers inconsistently: some hand the
// application a real header map, some only low-level transport variables
// (HTTP_AUTHORIZATION and friends), some a single raw value. The extractor
// accepts all three shapes. A missing credential is reported as absent, not
// as an error.

const authorizationHeader = "Authorization"

// FromRequest pulls a bearer credential from an *http.Request.
func FromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return FromValue(r.Header.Get(authorizationHeader))
}

// FromHeaderMap pulls a bearer credential from a flat header map, matching
// the header name case-insensitively and tolerating transport-variable
// spellings such as HTTP_AUTHORIZATION and REDIRECT_HTTP_AUTHORIZATION.
func FromHeaderMap(headers map[string]string) (string, bool) {
	for name, value := range headers {
		if isAuthorizationKey(name) {
			if tok, ok := FromValue(value); ok {
				return tok, true
			}
		}
	}
	return "", false
}

// FromValue parses a single raw header value. The Bearer prefix is matched
// case-insensitively and the credential is trimmed of surrounding whitespace.
func FromValue(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	const prefix = "bearer"
	if len(raw) <= len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return "", false
	}
	rest := raw[len(prefix):]
	if rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	tok := strings.TrimSpace(rest)
	if tok == "" {
		return "", false
	}
	return tok, true
}

func isAuthorizationKey(name string) bool {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	key = strings.TrimPrefix(key, "redirect-")
	key = strings.TrimPrefix(key, "http-")
	return key == "authorization"
}
