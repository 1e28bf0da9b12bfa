// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"score": 80}`, `{"score": 80}`},
		{"bare array", `[1, 2]`, `[1, 2]`},
		{"fenced json", "```json\n{\"score\": 80}\n```", `{"score": 80}`},
		{"fenced no language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json in prose", `Here is the result: {"score": 80} as requested.`, `{"score": 80}`},
		{"whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(ParseOutput(tt.in)))
		})
	}
}

func TestParseOutputPlainTextFallback(t *testing.T) {
	got := ParseOutput("I cannot answer that.")
	assert.JSONEq(t, `{"text": "I cannot answer that."}`, string(got))
}

func TestParseOutputMalformedJSONFallsBack(t *testing.T) {
	got := ParseOutput(`{"score": 80`)
	assert.JSONEq(t, `{"text": "{\"score\": 80"}`, string(got))
}

func TestSystemPromptTemperatures(t *testing.T) {
	_, temp := SystemPromptFor("material_alternative")
	assert.InDelta(t, 0.1, temp, 0.001)

	_, temp = SystemPromptFor("outreach_draft")
	assert.InDelta(t, 0.8, temp, 0.001)

	_, temp = SystemPromptFor("unknown_type")
	assert.InDelta(t, 0.7, temp, 0.001)

	prompt, _ := SystemPromptFor("compliance_check")
	assert.Contains(t, prompt, "compliance")
}

func TestBuildUserPrompt(t *testing.T) {
	got, err := BuildUserPrompt(map[string]interface{}{"material": "steel"})
	assert.NoError(t, err)
	assert.Contains(t, got, `"material": "steel"`)
	assert.Contains(t, got, "Respond with JSON only.")
}
