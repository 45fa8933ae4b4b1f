package identity

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"

	sigcrypto "github.com/sigaid/sigaid-core/internal/crypto"
)

const (
	keyfileMagic   = "SIGAIDKF"
	keyfileVersion = 1
	saltSize       = 16
)

// ErrWrongPassword and ErrCorruptKeyfile are the only two outcomes a caller
// can distinguish when loading a keyfile; this distinction never leaks
// through behavior observable over a network, only to the local caller
// holding the file.
var (
	ErrWrongPassword  = errors.New("identity: wrong password")
	ErrCorruptKeyfile = errors.New("identity: corrupt keyfile")
	ErrUnsupportedKDF = errors.New("identity: unsupported keyfile version")
)

// KDFParams controls the cost of the scrypt key-derivation step protecting
// a keyfile. The defaults target roughly one second of derivation on
// contemporary hardware.
type KDFParams struct {
	N int
	R int
	P int
}

// DefaultKDFParams matches the cost parameters the rest of the ecosystem
// uses for interactive password-based key derivation.
func DefaultKDFParams() KDFParams {
	return KDFParams{N: 1 << 20, R: 8, P: 1}
}

type keyfileOnDisk struct {
	Magic      string `json:"magic"`
	Version    uint8  `json:"version"`
	Salt       []byte `json:"salt"`
	ScryptN    int    `json:"scrypt_n"`
	ScryptR    int    `json:"scrypt_r"`
	ScryptP    int    `json:"scrypt_p"`
	Ciphertext []byte `json:"ciphertext"` // nonce || seal(seed)
}

func deriveKeyfileKey(password []byte, salt []byte, p KDFParams) ([]byte, error) {
	key, err := scrypt.Key(password, salt, p.N, p.R, p.P, 32)
	if err != nil {
		return nil, fmt.Errorf("identity: scrypt derivation failed: %w", err)
	}
	return key, nil
}

// ToKeyfile encrypts the keypair's seed under password and writes it to
// path. The write is atomic: the container is built in a temp file in the
// same directory and renamed over the destination, so a crash never leaves
// a half-written keyfile. Any existing file at path is replaced.
func (k *KeyPair) ToKeyfile(path string, password string, params KDFParams) error {
	if k.closed {
		return ErrClosed
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return sigcrypto.ErrCrypto
	}
	key, err := deriveKeyfileKey([]byte(password), salt, params)
	if err != nil {
		return err
	}
	defer zero(key)

	seed, err := k.Seed()
	if err != nil {
		return err
	}
	defer zero(seed)

	sealed, err := sigcrypto.AEADSealXChaCha20Poly1305(key, seed, []byte(keyfileMagic))
	if err != nil {
		return err
	}

	container := keyfileOnDisk{
		Magic:      keyfileMagic,
		Version:    keyfileVersion,
		Salt:       salt,
		ScryptN:    params.N,
		ScryptR:    params.R,
		ScryptP:    params.P,
		Ciphertext: sealed,
	}
	raw, err := json.Marshal(container)
	if err != nil {
		return fmt.Errorf("identity: marshal keyfile: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("identity: create keyfile dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".keyfile-*.tmp")
	if err != nil {
		return fmt.Errorf("identity: create temp keyfile: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best effort; Rename below removes the real target on success

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("identity: write temp keyfile: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("identity: chmod temp keyfile: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("identity: sync temp keyfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("identity: close temp keyfile: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("identity: rename keyfile into place: %w", err)
	}
	return nil
}

// FromKeyfile reads and decrypts the keyfile at path. It returns
// ErrCorruptKeyfile if the container cannot be parsed at all, and
// ErrWrongPassword if it parses but the AEAD tag does not verify — the
// constant-time AEAD open guarantees this distinction costs no timing
// information about the password.
func FromKeyfile(path string, password string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read keyfile: %w", err)
	}
	var container keyfileOnDisk
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil, ErrCorruptKeyfile
	}
	if container.Magic != keyfileMagic {
		return nil, ErrCorruptKeyfile
	}
	if container.Version != keyfileVersion {
		return nil, ErrUnsupportedKDF
	}
	if len(container.Salt) != saltSize {
		return nil, ErrCorruptKeyfile
	}

	params := KDFParams{N: container.ScryptN, R: container.ScryptR, P: container.ScryptP}
	key, err := deriveKeyfileKey([]byte(password), container.Salt, params)
	if err != nil {
		return nil, ErrCorruptKeyfile
	}
	defer zero(key)

	seed, err := sigcrypto.AEADOpenXChaCha20Poly1305(key, container.Ciphertext, []byte(keyfileMagic))
	if err != nil {
		return nil, ErrWrongPassword
	}
	defer zero(seed)

	return FromSeed(seed)
}
