package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"docseal/signature-backend/internal/domain"
)

// KeyBits is the RSA modulus size used for generated key pairs.
const KeyBits = 2048

const (
	privatePEMType = "PRIVATE KEY"
	publicPEMType  = "PUBLIC KEY"
)

var rsaGenerateKey = rsa.GenerateKey

// KeyProvider hands out the signing key pair. Implementations must be safe
// for concurrent use.
type KeyProvider interface {
	LoadPrivateKey() (*rsa.PrivateKey, error)
	LoadPublicKey() (*rsa.PublicKey, error)
}

// KeyPair is an RSA private key and the public key derived from it.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// KeyManager persists a single key pair as two PEM files and caches it once
// loaded. Regeneration takes the write lock, so it waits for in-flight loads.
type KeyManager struct {
	privatePath string
	publicPath  string

	mu   sync.RWMutex
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

// NewKeyManager returns a manager for the PEM files at privatePath and publicPath.
func NewKeyManager(privatePath, publicPath string) *KeyManager {
	return &KeyManager{privatePath: privatePath, publicPath: publicPath}
}

// Paths returns the private and public key file locations.
func (m *KeyManager) Paths() (string, string) { return m.privatePath, m.publicPath }

// GenerateKeyPair creates a new pair and overwrites both files.
//
// This is destructive: every attestation issued under the previous pair stops
// verifying. Call it at startup or behind an administrative guard only.
func (m *KeyManager) GenerateKeyPair() (*KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	priv, err := rsaGenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	if err := writeFileAtomic(m.privatePath, pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: privDER}), 0o600); err != nil {
		return nil, err
	}
	if err := m.writePublicKey(&priv.PublicKey); err != nil {
		return nil, err
	}

	m.priv = priv
	m.pub = &priv.PublicKey
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// EnsureKeyPair generates a pair only when the private key file is missing.
// A missing public key file is rewritten from the existing private key, so
// attestations issued under it keep verifying. It reports whether a new pair
// was created.
func (m *KeyManager) EnsureKeyPair() (bool, error) {
	if !exists(m.privatePath) {
		if _, err := m.GenerateKeyPair(); err != nil {
			return false, err
		}
		return true, nil
	}
	if !exists(m.publicPath) {
		if err := m.restorePublicKey(); err != nil {
			return false, err
		}
		return false, nil
	}
	if _, err := m.LoadPublicKey(); err != nil {
		return false, err
	}
	return false, nil
}

func (m *KeyManager) restorePublicKey() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	priv, err := readPrivateKey(m.privatePath)
	if err != nil {
		return err
	}
	if err := m.writePublicKey(&priv.PublicKey); err != nil {
		return err
	}
	m.priv, m.pub = priv, &priv.PublicKey
	return nil
}

func (m *KeyManager) writePublicKey(pub *rsa.PublicKey) error {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}
	return writeFileAtomic(m.publicPath, pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: der}), 0o644)
}

// LoadPrivateKey returns the cached private key, reading it from disk on first use.
func (m *KeyManager) LoadPrivateKey() (*rsa.PrivateKey, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.priv, nil
}

// LoadPublicKey returns the cached public key, reading it from disk on first use.
func (m *KeyManager) LoadPublicKey() (*rsa.PublicKey, error) {
	if err := m.load(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pub, nil
}

// PublicKeyPEM returns the PKIX encoding of the public key.
func (m *KeyManager) PublicKeyPEM() ([]byte, error) {
	pub, err := m.LoadPublicKey()
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyLoad, err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: der}), nil
}

func (m *KeyManager) load() error {
	m.mu.RLock()
	loaded := m.priv != nil && m.pub != nil
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.priv != nil && m.pub != nil {
		return nil
	}

	priv, err := readPrivateKey(m.privatePath)
	if err != nil {
		return err
	}
	pub, err := readPublicKey(m.publicPath)
	if err != nil {
		return err
	}
	if !priv.PublicKey.Equal(pub) {
		return fmt.Errorf("%w: public key %s does not belong to private key %s", domain.ErrKeyLoad, m.publicPath, m.privatePath)
	}
	m.priv, m.pub = priv, pub
	return nil
}

func readPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path, privatePEMType)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// keys written by older tooling may still be PKCS#1
		if k, err1 := x509.ParsePKCS1PrivateKey(block.Bytes); err1 == nil {
			return k, nil
		}
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrKeyLoad, path, err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an RSA key", domain.ErrKeyLoad, path)
	}
	return rsaKey, nil
}

func readPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path, publicPEMType)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrKeyLoad, path, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an RSA key", domain.ErrKeyLoad, path)
	}
	return rsaKey, nil
}

func readPEM(path, wantType string) (*pem.Block, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyLoad, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: %s contains no PEM block", domain.ErrKeyLoad, path)
	}
	if block.Type != wantType && !(wantType == privatePEMType && block.Type == "RSA PRIVATE KEY") {
		return nil, fmt.Errorf("%w: %s has PEM type %q", domain.ErrKeyLoad, path, block.Type)
	}
	return block, nil
}

func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return fmt.Errorf("create temp key file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install key file: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
