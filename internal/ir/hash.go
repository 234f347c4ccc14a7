package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainConfig   = "paperfig/config/v1"
	DomainArtifact = "paperfig/artifact/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigFingerprint hashes the canonical JSON of a settings tree.
// The result is recorded as config_hash in run.json.
func ConfigFingerprint(settings any) (string, error) {
	canonical, err := MarshalCanonical(settings)
	if err != nil {
		return "", fmt.Errorf("ConfigFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// ContentHash hashes raw artifact bytes. Two runs whose final SVGs have the
// same ContentHash rendered the same figure.
func ContentHash(data []byte) string {
	return hashWithDomain(DomainArtifact, data)
}

// MustConfigFingerprint is like ConfigFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConfigFingerprint(settings any) string {
	h, err := ConfigFingerprint(settings)
	if err != nil {
		panic(err)
	}
	return h
}
