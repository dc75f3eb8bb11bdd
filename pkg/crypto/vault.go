package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	appErrors "github.com/noah-isme/sirama-krs-engine/pkg/errors"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Vault encrypts and decrypts SIRAMA credentials at rest. Plaintext
// credentials only exist in memory between Decrypt and the login call.
type Vault struct {
	key [keySize]byte
}

// NewVault builds a vault from a base64-encoded 32-byte key.
func NewVault(encodedKey string) (*Vault, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrVaultKey.Code, appErrors.ErrVaultKey.Status, "credential encryption key is not valid base64")
	}
	if len(raw) != keySize {
		return nil, appErrors.Clone(appErrors.ErrVaultKey, fmt.Sprintf("credential encryption key must be %d bytes", keySize))
	}

	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// GenerateKey returns a fresh base64-encoded key suitable for NewVault.
func GenerateKey() (string, error) {
	var key [keySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

// Encrypt seals the plaintext and returns a base64 token (nonce prefixed).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt.
func (v *Vault) Decrypt(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("decode credential token: %w", err)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("credential token too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", fmt.Errorf("credential token failed authentication")
	}
	return string(plaintext), nil
}
