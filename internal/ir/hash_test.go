package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFingerprintDeterminism(t *testing.T) {
	settings := map[string]any{
		"docs":            map[string]any{"scope": "all", "auto_regen_on_generate": true},
		"reproducibility": map[string]any{"mode": "soft"},
	}

	h1, err := ConfigFingerprint(settings)
	require.NoError(t, err)
	h2, err := ConfigFingerprint(settings)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestConfigFingerprintIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{"x": 1, "y": map[string]any{"p": "q", "r": "s"}}
	b := map[string]any{"y": map[string]any{"r": "s", "p": "q"}, "x": 1}

	assert.Equal(t, MustConfigFingerprint(a), MustConfigFingerprint(b))
}

func TestConfigFingerprintChangesWithValue(t *testing.T) {
	a := MustConfigFingerprint(map[string]any{"mode": "soft"})
	b := MustConfigFingerprint(map[string]any{"mode": "hard"})

	assert.NotEqual(t, a, b)
}

func TestContentHashDomainSeparated(t *testing.T) {
	data := []byte("<svg/>")

	assert.Equal(t, ContentHash(data), ContentHash([]byte("<svg/>")))
	assert.NotEqual(t, ContentHash(data), ContentHash([]byte("<svg />")))
	assert.NotEqual(t, hashWithDomain(DomainConfig, data), ContentHash(data))
}
