package secrets

import "errors"

var (
	// ErrSecretNotFound indicates the referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrNameConflict indicates the folder already holds an active secret
	// with the name. The storage unique constraint is authoritative.
	ErrNameConflict = errors.New("secret name already exists in folder")

	// ErrEncrypt indicates the plaintext could not be sealed. The secret
	// is not persisted.
	ErrEncrypt = errors.New("failed to encrypt secret")

	// ErrDecrypt indicates the stored ciphertext could not be opened,
	// typically after a key rotation without re-encryption or storage
	// corruption. Never silently degraded to an empty value.
	ErrDecrypt = errors.New("failed to decrypt secret")
)
