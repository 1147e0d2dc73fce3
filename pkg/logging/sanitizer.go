package logging

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxQueryLogLength is the maximum number of runes of a free-text query to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match potential passwords in query strings or error text
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match bearer tokens
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// Pattern to match potential API keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key|token)=[A-Za-z0-9-_]{20,}`)

	// Pattern to match URL credentials (user:pass@host format)
	userInfoPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// sensitiveParams are query parameter names whose values never reach the logs.
var sensitiveParams = []string{"password", "pwd", "pass", "token", "api_key", "apikey", "key", "secret"}

// SanitizeURL removes credentials and secret query parameters from a backend URL.
// Use this before logging any URL built from the user-editable base URL.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return userInfoPattern.ReplaceAllString(rawURL, "://"+RedactedText+"@")
	}

	if u.User != nil {
		u.User = url.User(RedactedText)
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			for _, s := range sensitiveParams {
				if strings.EqualFold(name, s) {
					q.Set(name, RedactedText)
				}
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// SanitizeError sanitizes error messages that might contain sensitive data
// Use this before surfacing a backend error to the browser
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	sanitized := passwordPattern.ReplaceAllString(errStr, "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// SanitizeQueryText truncates a natural-language query for logging
func SanitizeQueryText(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	sanitized := TruncateString(query, MaxQueryLogLength)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return sanitized
}

// TruncateString truncates a string to maxLen runes and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
