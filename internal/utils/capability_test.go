package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapabilityToken(t *testing.T) {
	tok, err := NewCapabilityToken(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Len(t, tok.Raw, 64)
	assert.Len(t, tok.Hash, 64) // sha256 hex
	assert.Equal(t, HashToken(tok.Raw), tok.Hash)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), tok.Exp, time.Minute)
}

func TestCapabilityTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := NewCapabilityToken(time.Hour)
		require.NoError(t, err)
		assert.False(t, seen[tok.Raw])
		seen[tok.Raw] = true
	}
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
