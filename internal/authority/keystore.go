package authority

import (
	"fmt"
	"os"
	"path/filepath"

	"aidanwoods.dev/go-paseto"

	"github.com/sigaid/sigaid-core/internal/lease"
	"github.com/sigaid/sigaid-core/internal/securestore"
)

// tokenKeyPurpose binds the Authority's token-signing key envelope to this
// one use so it can never be silently swapped on disk for some other secret
// encrypted under the same SIGAID_KEYSTORE_SECRET.
const tokenKeyPurpose = "sigaid-authority-token-key"

// LoadOrCreateTokenKey loads the Authority's own PASETO v4.local symmetric
// key from an encrypted envelope at path, generating and persisting a
// fresh one on first run. This key never leaves the Authority process.
func LoadOrCreateTokenKey(path, secret string) (paseto.V4SymmetricKey, error) {
	if secret == "" {
		return paseto.V4SymmetricKey{}, fmt.Errorf("authority: SIGAID_KEYSTORE_SECRET is required to protect the token key")
	}

	raw, err := securestore.ReadDecryptedFile(path, secret, tokenKeyPurpose)
	if err == nil {
		return lease.TokenKeyFromBytes(raw)
	}
	if !os.IsNotExist(err) {
		return paseto.V4SymmetricKey{}, fmt.Errorf("authority: reading keystore %s: %w", path, err)
	}

	key := lease.GenerateTokenKey()
	encrypted, err := securestore.Encrypt(secret, tokenKeyPurpose, key.ExportBytes())
	if err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("authority: encrypting fresh token key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("authority: creating keystore dir: %w", err)
	}
	if err := os.WriteFile(path, encrypted, 0o600); err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("authority: writing keystore %s: %w", path, err)
	}
	return key, nil
}
