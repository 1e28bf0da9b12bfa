// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package calllog

import (
	"regexp"
	"strings"
)

// redactionRule replaces one class of sensitive value. Rules apply in
// order; earlier rules must not produce text a later rule would mangle.
type redactionRule struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

var redactionRules = []redactionRule{
	{
		name:    "email",
		pattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		replace: "[EMAIL]",
	},
	{
		name:    "api_key",
		pattern: regexp.MustCompile(`\bsk-[a-zA-Z0-9\-_]{16,}\b`),
		replace: "[API_KEY]",
	},
	{
		name:    "bearer_token",
		pattern: regexp.MustCompile(`(?i)\bbearer\s+[a-zA-Z0-9\-._~+/]+=*`),
		replace: "[TOKEN]",
	},
	{
		// credential fields inside serialized JSON carried as a string
		// value, which the key-drop pass cannot see
		name:    "quoted_secret",
		pattern: regexp.MustCompile(`(?i)"(password|secret|token|api_key|apikey|access_token|refresh_token)"\s*:\s*"[^"]*"`),
		replace: `"${1}":"[REDACTED]"`,
	},
	{
		name:    "api_key_shape",
		pattern: regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`),
		replace: "[API_KEY]",
	},
	{
		name:    "credit_card",
		pattern: regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`),
		replace: "[CARD]",
	},
	{
		name:    "ssn",
		pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		replace: "[SSN]",
	},
	{
		name:    "phone",
		pattern: regexp.MustCompile(`\+?\d{1,3}[ \-.]?\(?\d{2,4}\)?[ \-.]?\d{3,4}[ \-.]?\d{3,4}\b`),
		replace: "[PHONE]",
	},
}

// sensitiveKeys are dropped from summaries entirely, never stored even
// redacted.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"apikey":        {},
	"api_key":       {},
	"token":         {},
	"secret":        {},
	"authorization": {},
	"creditcard":    {},
	"credit_card":   {},
	"ssn":           {},
}

// isSensitiveKey reports whether a field name must be excluded from
// summaries.
func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// RedactString applies every redaction rule to a string value.
func RedactString(s string) string {
	for _, rule := range redactionRules {
		s = rule.pattern.ReplaceAllString(s, rule.replace)
	}
	return s
}

// redactValue walks a decoded JSON value, redacting strings and dropping
// sensitive keys.
func redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return RedactString(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			if isSensitiveKey(k) {
				continue
			}
			out[k] = redactValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner)
		}
		return out
	default:
		return v
	}
}
