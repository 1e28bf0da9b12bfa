// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package calllog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Normalize renders a decoded JSON value in canonical form: object keys
// sorted, no insignificant whitespace. Two semantically equal inputs
// normalize to the same string regardless of field order.
func Normalize(v interface{}) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

// HashInput returns the hex SHA-256 of the canonical form of the input.
// Hashing happens before redaction so equal inputs always collide, but
// the hash itself reveals nothing.
func HashInput(v interface{}) string {
	sum := sha256.Sum256([]byte(Normalize(v)))
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the hex SHA-256 of raw bytes, used for output
// payloads that are already serialized.
func HashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func writeCanonical(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, k)
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []interface{}:
		b.WriteByte('[')
		for i, inner := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, inner)
		}
		b.WriteByte(']')
	case nil:
		b.WriteString("null")
	default:
		enc, err := json.Marshal(val)
		if err != nil {
			fmt.Fprintf(b, "%q", fmt.Sprint(val))
			return
		}
		b.Write(enc)
	}
}

func writeJSONString(b *strings.Builder, s string) {
	enc, _ := json.Marshal(s)
	b.Write(enc)
}
