package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainQuery prefixes structural query hashes. The version suffix allows
// the algorithm to change.
const DomainQuery = "querylift/query/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the domain-separated hash of v's canonical encoding.
func Hash(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: failed to marshal: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(domain string, v IRValue) string {
	h, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
