// Package redact scrubs credentials from text before it is logged, stored or
// sent to a model.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	placeholder = "[REDACTED]"
	tokenMask   = "***"
)

// secretPatterns are heuristics for credentials commonly committed to code.
var secretPatterns = []*regexp.Regexp{
	// Private keys
	regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	// AWS
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*["']?[A-Za-z0-9/+=]{20,}["']?`),
	// GitHub
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{20,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`),
	// Google
	regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
	// Slack
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`),
	// Stripe
	regexp.MustCompile(`sk_(?:live|test)_[0-9A-Za-z]{10,}`),
	// OpenAI / Anthropic
	regexp.MustCompile(`sk-(?:ant-)?[A-Za-z0-9\-_]{20,}`),
	// JWT
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{5,}\.eyJ[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]{10,}`),
	// Bearer
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-\._~\+\/]{20,}=*`),
	// Generic key assignments
	regexp.MustCompile(`(?i)(api[_-]?key|client[_-]?secret|secret|token|password|passwd)\s*[:=]\s*["'][^"'\s]{8,}["']`),
	// URL with basic auth
	regexp.MustCompile(`://[^\s/:@]+:[^\s/@]+@`),
}

// Secrets replaces detected credentials in text with [REDACTED].
func Secrets(text string) string {
	out := text
	for _, pat := range secretPatterns {
		out = pat.ReplaceAllString(out, placeholder)
	}
	return out
}

// Token masks every occurrence of token in s. An empty token leaves s as is.
func Token(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, tokenMask)
}

// URL strips userinfo from a URL so it can be stored or logged. Strings that
// do not parse are returned with any "user@" prefix of the authority removed.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.Index(raw, "://"); i >= 0 {
			rest := raw[i+3:]
			if at := strings.Index(rest, "@"); at >= 0 && !strings.Contains(rest[:at], "/") {
				return raw[:i+3] + rest[at+1:]
			}
		}
		return raw
	}
	u.User = nil
	return u.String()
}
