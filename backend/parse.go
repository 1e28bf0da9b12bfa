// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseOutput extracts the JSON object or array from a model response.
// Models wrap JSON in markdown fences or prose more often than not. When
// no valid JSON can be found the raw text is preserved under a "text"
// field rather than dropped.
func ParseOutput(content string) json.RawMessage {
	content = strings.TrimSpace(content)

	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		if raw := validJSON(m[1]); raw != nil {
			return raw
		}
	}

	if raw := validJSON(content); raw != nil {
		return raw
	}

	// bare JSON embedded in prose
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(content, pair[0])
		end := strings.LastIndexByte(content, pair[1])
		if start >= 0 && end > start {
			if raw := validJSON(content[start : end+1]); raw != nil {
				return raw
			}
		}
	}

	fallback, _ := json.Marshal(map[string]string{"text": content})
	return fallback
}

func validJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if s[0] != '{' && s[0] != '[' {
		return nil
	}
	if !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}
