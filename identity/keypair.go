// Package identity manages the process's long-lived Ed25519 signing key
// and the canonical-JSON signing scheme the signaling protocol relies on.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

const (
	vendorDir   = "pulse"
	keysSubdir  = "keys"
	keyFileName = "private.key"
	keyFileMode = 0o600
)

// KeyPair is a persistent Ed25519 signing identity. Immutable for the
// process lifetime once loaded.
type KeyPair struct {
	seed      [32]byte
	public    ed25519.PublicKey
	signingKy ed25519.PrivateKey
}

// KeyFilePath returns the platform-specific path the key is stored at:
// <data-dir>/keys/private.key, where data-dir follows os.UserConfigDir
// (Windows %APPDATA%, macOS ~/Library/Application Support, Linux
// $XDG_CONFIG_HOME or ~/.config) under a "pulse" qualifier.
func KeyFilePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve user config dir: %v", ErrKeyIO, err)
	}
	return filepath.Join(base, vendorDir, keysSubdir, keyFileName), nil
}

// LoadOrCreate loads the key at KeyFilePath if present, otherwise
// generates a fresh one from a cryptographically secure RNG and persists
// it with owner-only permissions. A present-but-malformed key file is a
// fatal error, never silently regenerated, since that would invalidate
// the caller's identity without telling them.
func LoadOrCreate() (*KeyPair, error) {
	path, err := KeyFilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return fromStoredBytes(data)
	case os.IsNotExist(err):
		return generateAndPersist(path)
	default:
		return nil, fmt.Errorf("%w: read %s: %v", ErrKeyIO, path, err)
	}
}

func fromStoredBytes(data []byte) (*KeyPair, error) {
	seed, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrMalformedKey, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedKey, ed25519.SeedSize, len(seed))
	}
	return fromSeed(seed)
}

func generateAndPersist(path string) (*KeyPair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("%w: generate seed: %v", ErrKeyIO, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", ErrKeyIO, err)
	}

	encoded := base64.StdEncoding.EncodeToString(seed)
	if err := os.WriteFile(path, []byte(encoded), keyFileMode); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrKeyIO, path, err)
	}

	return fromSeed(seed)
}

// GenerateEphemeral creates a fresh KeyPair from a cryptographically
// secure RNG without persisting it, for test fixtures and short-lived
// server-side identities (e.g. the mock rendezvous server's own key).
func GenerateEphemeral() (*KeyPair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("%w: generate seed: %v", ErrKeyIO, err)
	}
	return fromSeed(seed)
}

func fromSeed(seed []byte) (*KeyPair, error) {
	kp := &KeyPair{}
	copy(kp.seed[:], seed)
	kp.signingKy = ed25519.NewKeyFromSeed(seed)
	kp.public = kp.signingKy.Public().(ed25519.PublicKey)
	return kp, nil
}

// PublicKeyBase64 returns the standard-alphabet base64 encoding of the
// 32-byte public key (44 characters).
func (kp *KeyPair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(kp.public)
}

// PublicKey returns the raw 32-byte Ed25519 public key.
func (kp *KeyPair) PublicKey() ed25519.PublicKey {
	return kp.public
}

// Sign signs message with Ed25519, returning a 64-byte signature.
func (kp *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.signingKy, message)
}

// Verify checks an Ed25519 signature against a public key, used by the
// mock rendezvous server to validate client envelopes.
func Verify(publicKey []byte, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}
