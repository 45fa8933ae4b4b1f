package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func fastKDFParams() KDFParams {
	// Cost parameters low enough for a test run, high enough to exercise
	// every scrypt code path (N must be a power of two greater than 1).
	return KDFParams{N: 1 << 10, R: 8, P: 1}
}

func TestKeyfileRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	wantSeed, err := kp.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "agent.keyfile")
	if err := kp.ToKeyfile(path, "correct horse battery staple", fastKDFParams()); err != nil {
		t.Fatalf("ToKeyfile: %v", err)
	}

	loaded, err := FromKeyfile(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("FromKeyfile: %v", err)
	}
	gotSeed, err := loaded.Seed()
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !bytes.Equal(wantSeed, gotSeed) {
		t.Fatal("round-tripped keyfile must recover the original seed")
	}
	if !bytes.Equal(loaded.PublicKey(), kp.PublicKey()) {
		t.Fatal("round-tripped keyfile must recover the original public key")
	}
}

func TestKeyfileWrongPassword(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.keyfile")
	if err := kp.ToKeyfile(path, "right-password", fastKDFParams()); err != nil {
		t.Fatalf("ToKeyfile: %v", err)
	}

	if _, err := FromKeyfile(path, "wrong-password"); err != ErrWrongPassword {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestKeyfileBitFlipFailsToDecrypt(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.keyfile")
	if err := kp.ToKeyfile(path, "a-password", fastKDFParams()); err != nil {
		t.Fatalf("ToKeyfile: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	mutated := append([]byte{}, raw...)
	// Flip a byte inside the JSON body; if it lands on structural syntax
	// the result is ErrCorruptKeyfile, otherwise ErrWrongPassword — both
	// are acceptable outcomes, what must never happen is a clean load.
	mutated[len(mutated)/2] ^= 0x01
	if err := os.WriteFile(path, mutated, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := FromKeyfile(path, "a-password"); err == nil {
		t.Fatal("bit-flipped keyfile must not decrypt successfully")
	}
}

func TestKeyfileRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := FromKeyfile(filepath.Join(dir, "missing"), "whatever"); err == nil {
		t.Fatal("expected error for missing keyfile")
	}
}

func TestKeyfileRejectsGarbageContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.keyfile")
	if err := os.WriteFile(path, []byte("not json at all"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := FromKeyfile(path, "whatever"); err != ErrCorruptKeyfile {
		t.Fatalf("expected ErrCorruptKeyfile, got %v", err)
	}
}

func TestKeyfileOverwritesExistingAtomically(t *testing.T) {
	kp1, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	kp2, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.keyfile")

	if err := kp1.ToKeyfile(path, "pw", fastKDFParams()); err != nil {
		t.Fatalf("ToKeyfile: %v", err)
	}
	if err := kp2.ToKeyfile(path, "pw", fastKDFParams()); err != nil {
		t.Fatalf("ToKeyfile (overwrite): %v", err)
	}

	loaded, err := FromKeyfile(path, "pw")
	if err != nil {
		t.Fatalf("FromKeyfile: %v", err)
	}
	if !bytes.Equal(loaded.PublicKey(), kp2.PublicKey()) {
		t.Fatal("overwrite must replace the keyfile contents, not append or merge them")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file left in place, found %d", len(entries))
	}
}

func TestKeyfileClosedKeypairCannotBeWritten(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	kp.Close()
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.keyfile")
	if err := kp.ToKeyfile(path, "pw", fastKDFParams()); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
