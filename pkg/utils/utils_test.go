package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // 32 bytes

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.Encrypt("refresh-token")
	require.NoError(t, err)
	assert.NotEqual(t, "refresh-token", sealed)

	plain, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", plain)
}

func TestCipherNilPassesThrough(t *testing.T) {
	var c *Cipher
	s, err := c.Encrypt("x")
	require.NoError(t, err)
	assert.Equal(t, "x", s)
}

func TestParseEncryptionKey(t *testing.T) {
	_, err := ParseEncryptionKey("")
	assert.Error(t, err)
	_, err = ParseEncryptionKey("!!!")
	assert.Error(t, err)
	_, err = ParseEncryptionKey("c2hvcnQ=")
	assert.Error(t, err)
}

func TestDecryptTampered(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)
	_, err = c.Decrypt("AAAA")
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("same text")
	assert.Len(t, a, 32)
	assert.Equal(t, a, Fingerprint("same text"))
	assert.NotEqual(t, a, Fingerprint("other text"))
}

func TestValidatePromptContent(t *testing.T) {
	assert.Error(t, ValidatePromptContent(strings.Repeat("a", 49)))
	assert.Error(t, ValidatePromptContent("   "+strings.Repeat("a", 49)+"   "))
	assert.NoError(t, ValidatePromptContent("Today I felt overwhelmed at work and needed a break."))

	var ve *ValidationError
	require.ErrorAs(t, ValidatePromptContent("short"), &ve)
	assert.Equal(t, "content", ve.Field)
}

func TestValidateEntryContent(t *testing.T) {
	assert.NoError(t, ValidateEntryContent(""))
	assert.Error(t, ValidateEntryContent(strings.Repeat("x", MaxEntryContentLength+1)))
}

func TestNormalizeProvider(t *testing.T) {
	p, ok := NormalizeProvider(" GitHub ")
	assert.True(t, ok)
	assert.Equal(t, "github", p)

	p, ok = NormalizeProvider("")
	assert.True(t, ok)
	assert.Equal(t, "google", p)

	_, ok = NormalizeProvider("myspace")
	assert.False(t, ok)
}
