package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"pennywise-hq/budgetd/pkg/config"
)

// Redactor masks PII in log messages and attribute values. A nil Redactor
// passes everything through unchanged.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
	replace     func(string) string
}

// Built-in pattern names.
const (
	PatternEmail       = "email"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
	PatternAPIKey      = "api_key"
)

var defaultPatterns = []*redactPattern{
	{
		name:    PatternEmail,
		regex:   regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		replace: RedactEmail,
	},
	{
		name:        PatternBearerToken,
		regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
		replacement: "Bearer ***",
	},
	{
		name:        PatternPassword,
		regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)[:=]\s*[^\s]+`),
		replacement: "$1: ***",
	},
	{
		name:        PatternAPIKey,
		regex:       regexp.MustCompile(`(?i)api[-_]?key[-_:=]\s*[a-zA-Z0-9]+`),
		replacement: "api_key: ***",
	},
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "api_key", "apikey",
	"authorization",
}

// NewRedactor creates a Redactor with the built-in patterns plus custom
// ones. Custom patterns that fail to compile are skipped.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{patterns: append([]*redactPattern(nil), defaultPatterns...)}
	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}
	return r
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}
	for _, p := range r.patterns {
		if p.replace != nil {
			value = p.regex.ReplaceAllStringFunc(value, p.replace)
			continue
		}
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr redacts one attribute. Values under sensitive keys are masked
// entirely; string values are pattern-matched; groups are walked.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if r == nil {
		return a
	}
	v := a.Value.Resolve()
	switch {
	case isSensitiveKey(a.Key):
		if v.Kind() == slog.KindString && v.String() == "" {
			return a
		}
		return slog.String(a.Key, "***")
	case v.Kind() == slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case v.Kind() == slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case v.Kind() == slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	if at == 0 {
		return "***" + email
	}
	return email[:1] + "***" + email[at:]
}
