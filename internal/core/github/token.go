package github

import (
	"regexp"
	"strings"
)

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ghp_[a-zA-Z0-9_]{36,}$`),
	regexp.MustCompile(`^github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59,}$`),
	regexp.MustCompile(`^gho_[a-zA-Z0-9_]{36,}$`),
	regexp.MustCompile(`^[a-fA-F0-9]{40}$`),
}

// ValidateToken reports whether token looks like a GitHub personal access,
// fine-grained, OAuth, or legacy token.
func ValidateToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	for _, pattern := range tokenPatterns {
		if pattern.MatchString(token) {
			return true
		}
	}
	return false
}

// MaskToken hides all but the first and last four characters of token.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}
