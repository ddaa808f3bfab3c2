package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c := NewTestCipher(t)

	ciphertext, err := c.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotContains(t, ciphertext, "hunter2")

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)
}

func TestCipherFreshNoncePerCall(t *testing.T) {
	c := NewTestCipher(t)

	first, err := c.Encrypt("same value")
	require.NoError(t, err)
	second, err := c.Encrypt("same value")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCipherEmptyPlaintext(t *testing.T) {
	c := NewTestCipher(t)

	ciphertext, err := c.Encrypt("")
	require.NoError(t, err)
	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "", plaintext)
}

func TestCipherRejectsTamperedCiphertext(t *testing.T) {
	c := NewTestCipher(t)

	ciphertext, err := c.Encrypt("hunter2")
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	tampered[len(tampered)-5] ^= 'x'
	_, err = c.Decrypt(string(tampered))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestCipherRejectsWrongKey(t *testing.T) {
	c := NewTestCipher(t)
	other, err := NewCipher("0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("hunter2")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestCipherRejectsMalformedInput(t *testing.T) {
	c := NewTestCipher(t)

	_, err := c.Decrypt("not base64 !!!")
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = c.Decrypt("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewCipherKeyValidation(t *testing.T) {
	_, err := NewCipher("zz")
	assert.Error(t, err)

	// 16 bytes is AES-128, not accepted.
	_, err = NewCipher("00112233445566778899aabbccddeeff")
	assert.Error(t, err)
}
