// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package calllog

import (
	"encoding/json"
	"sort"
)

const (
	maxSummaryFields    = 10
	maxSummaryStringLen = 100
	maxSummaryBytes     = 500
)

// SummarizeInput produces a compact, redacted snapshot of a workflow
// input for audit storage. At most 10 fields survive, string values are
// truncated to 100 characters, sensitive keys disappear, and the whole
// summary is capped at 500 bytes of JSON.
func SummarizeInput(input map[string]interface{}) map[string]interface{} {
	if input == nil {
		return nil
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		if !isSensitiveKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > maxSummaryFields {
		keys = keys[:maxSummaryFields]
	}

	summary := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		summary[k] = summarizeValue(input[k])
	}

	// drop fields from the end until the summary fits
	for len(summary) > 0 {
		enc, err := json.Marshal(summary)
		if err != nil || len(enc) <= maxSummaryBytes {
			break
		}
		last := keys[len(keys)-1]
		keys = keys[:len(keys)-1]
		delete(summary, last)
	}
	return summary
}

// SummarizeOutput redacts and condenses a serialized result payload the
// same way inputs are treated, so nothing sensitive the model echoed
// back reaches storage either.
func SummarizeOutput(raw []byte) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]interface{}{"_value": summarizeValue(string(raw))}
	}
	if m, ok := v.(map[string]interface{}); ok {
		return SummarizeInput(m)
	}
	return map[string]interface{}{"_value": summarizeValue(v)}
}

func summarizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		s := RedactString(val)
		if len(s) > maxSummaryStringLen {
			return s[:maxSummaryStringLen] + "..."
		}
		return s
	case map[string]interface{}:
		return map[string]interface{}{"_fields": len(val)}
	case []interface{}:
		return map[string]interface{}{"_items": len(val)}
	default:
		return v
	}
}
