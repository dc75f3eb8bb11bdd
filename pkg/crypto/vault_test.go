package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	vault, err := NewVault(key)
	require.NoError(t, err)

	token, err := vault.Encrypt("sirama-password-123")
	require.NoError(t, err)
	assert.NotEqual(t, "sirama-password-123", token)

	plain, err := vault.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "sirama-password-123", plain)
}

func TestVaultEncryptProducesDistinctTokens(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	vault, err := NewVault(key)
	require.NoError(t, err)

	first, err := vault.Encrypt("same-secret")
	require.NoError(t, err)
	second, err := vault.Encrypt("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVaultRejectsBadKey(t *testing.T) {
	_, err := NewVault("not-base64!!")
	require.Error(t, err)

	_, err = NewVault("c2hvcnQ=")
	require.Error(t, err)
}

func TestVaultDecryptRejectsTampering(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	vault, err := NewVault(key)
	require.NoError(t, err)

	token, err := vault.Encrypt("secret")
	require.NoError(t, err)

	otherKey, err := GenerateKey()
	require.NoError(t, err)
	other, err := NewVault(otherKey)
	require.NoError(t, err)

	_, err = other.Decrypt(token)
	require.Error(t, err)
}
