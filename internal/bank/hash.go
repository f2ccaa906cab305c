package bank

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"sort"
	"strings"
)

// GenerateHash computes the ver3 tamper-detection digest over the given
// fields: keys are lower-cased and sorted ordinally, the hash and encoding
// fields are left out, values get `\` and `|` escaped, and the values are
// joined with `|` with the store key appended before the SHA-512/base64 step.
func GenerateHash(fields map[string]string, storeKey string) string {
	lowered := make(map[string]string, len(fields))
	for k, v := range fields {
		lk := strings.ToLower(k)
		if lk == "hash" || lk == "encoding" {
			continue
		}
		lowered[lk] = v
	}

	keys := make([]string, 0, len(lowered))
	for k := range lowered {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, escapeHashValue(lowered[k]))
	}
	parts = append(parts, escapeHashValue(storeKey))

	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ValidateHash recomputes the digest over the received fields (minus the
// received hash itself) and compares it to the hash the gateway sent. Any
// mismatch means the browser-relayed callback was forged or corrupted.
func ValidateHash(fields map[string]string, storeKey string) bool {
	var received string
	for k, v := range fields {
		if strings.EqualFold(k, "hash") {
			received = v
			break
		}
	}
	if received == "" {
		return false
	}

	expected := GenerateHash(fields, storeKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

func escapeHashValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `|`, `\|`)
	return v
}
