package httpclient

import (
	"net/url"
	"sort"
	"strings"
)

// redactedParams carry user identifiers that Braze accepts in the query
// string of lookup and export endpoints.
var redactedParams = map[string]bool{
	"email":         true,
	"email_address": true,
	"phone":         true,
	"external_id":   true,
	"braze_id":      true,
	"user_alias":    true,
	"device_id":     true,
}

// credentialFragments flag credential parameters by substring.
var credentialFragments = []string{"key", "token", "secret", "password", "auth"}

const redactedValue = "REDACTED"

// logURL renders u for request logs. Userinfo and fragment are dropped,
// and sensitive query values are replaced. Keys are sorted so log lines
// for the same request compare equal.
func logURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(u.EscapedPath())

	q := u.Query()
	if len(q) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		for j, v := range q[k] {
			if j > 0 {
				b.WriteByte('&')
			}
			if isSensitiveParam(k) {
				v = redactedValue
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	if redactedParams[lower] {
		return true
	}
	for _, frag := range credentialFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
