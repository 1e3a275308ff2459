package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseal/signature-backend/internal/domain"
)

func newManager(t *testing.T) *KeyManager {
	t.Helper()
	dir := t.TempDir()
	m := NewKeyManager(filepath.Join(dir, "keys", "private_key.pem"), filepath.Join(dir, "keys", "public_key.pem"))
	_, err := m.GenerateKeyPair()
	require.NoError(t, err)
	return m
}

func TestSignVerifyRoundTrip(t *testing.T) {
	m := newManager(t)
	signer, verifier := NewSigner(m), NewVerifier(m)

	for i := 0; i < 5; i++ {
		fp := domain.FingerprintOf([]byte(fmt.Sprintf("document-%d", i)))
		sig, err := signer.Sign(fp)
		require.NoError(t, err)
		assert.Len(t, sig, KeyBits/8)

		ok, err := verifier.Verify(fp, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestSignIsRandomized(t *testing.T) {
	m := newManager(t)
	signer, verifier := NewSigner(m), NewVerifier(m)
	fp := domain.FingerprintOf([]byte("invoice"))

	a, err := signer.Sign(fp)
	require.NoError(t, err)
	b, err := signer.Sign(fp)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	for _, sig := range [][]byte{a, b} {
		ok, err := verifier.Verify(fp, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestVerifyRejectsMismatches(t *testing.T) {
	m := newManager(t)
	signer, verifier := NewSigner(m), NewVerifier(m)
	fp := domain.FingerprintOf([]byte("Invoice #1, $100"))
	sig, err := signer.Sign(fp)
	require.NoError(t, err)

	t.Run("other fingerprint", func(t *testing.T) {
		ok, err := verifier.Verify(domain.FingerprintOf([]byte("Invoice #1, $900")), sig)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("flipped bit", func(t *testing.T) {
		forged := append([]byte(nil), sig...)
		forged[10] ^= 0x01
		ok, err := verifier.Verify(fp, forged)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("truncated", func(t *testing.T) {
		ok, err := verifier.Verify(fp, sig[:len(sig)-1])
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		ok, err := verifier.Verify(fp, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong key pair", func(t *testing.T) {
		other := newManager(t)
		ok, err := NewVerifier(other).Verify(fp, sig)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("pkcs1v15 scheme", func(t *testing.T) {
		priv, err := m.LoadPrivateKey()
		require.NoError(t, err)
		digest := sha256.Sum256([]byte(fp))
		v15, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
		require.NoError(t, err)

		ok, err := verifier.Verify(fp, v15)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestVerifyAcceptsExplicitMaxSalt(t *testing.T) {
	m := newManager(t)
	priv, err := m.LoadPrivateKey()
	require.NoError(t, err)
	fp := domain.FingerprintOf([]byte("max salt"))
	digest := sha256.Sum256([]byte(fp))
	maxSalt := priv.Size() - sha256.Size - 2
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: maxSalt})
	require.NoError(t, err)

	ok, err := NewVerifier(m).Verify(fp, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignRejectsMalformedFingerprint(t *testing.T) {
	m := newManager(t)
	_, err := NewSigner(m).Sign("not-a-digest")
	assert.ErrorIs(t, err, domain.ErrSigning)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMissingKeys(t *testing.T) {
	dir := t.TempDir()
	m := NewKeyManager(filepath.Join(dir, "priv.pem"), filepath.Join(dir, "pub.pem"))

	_, err := m.LoadPrivateKey()
	assert.ErrorIs(t, err, domain.ErrKeyLoad)

	_, err = NewSigner(m).Sign(domain.FingerprintOf([]byte("x")))
	assert.ErrorIs(t, err, domain.ErrSigning)
	assert.ErrorIs(t, err, domain.ErrKeyLoad)

	_, err = NewVerifier(m).Verify(domain.FingerprintOf([]byte("x")), []byte("sig"))
	assert.ErrorIs(t, err, domain.ErrVerificationIO)
	assert.ErrorIs(t, err, domain.ErrKeyLoad)
}

func TestCorruptKeys(t *testing.T) {
	m := newManager(t)
	privPath, pubPath := m.Paths()

	t.Run("garbage", func(t *testing.T) {
		require.NoError(t, os.WriteFile(privPath, []byte("not pem"), 0o600))
		_, err := NewKeyManager(privPath, pubPath).LoadPrivateKey()
		assert.ErrorIs(t, err, domain.ErrKeyLoad)
	})

	t.Run("swapped public key", func(t *testing.T) {
		fresh := newManager(t)
		_, err := fresh.GenerateKeyPair()
		require.NoError(t, err)
		otherPriv, _ := fresh.Paths()

		_, err = NewKeyManager(otherPriv, pubPath).LoadPublicKey()
		assert.ErrorIs(t, err, domain.ErrKeyLoad)
	})
}

func TestEnsureKeyPair(t *testing.T) {
	dir := t.TempDir()
	m := NewKeyManager(filepath.Join(dir, "priv.pem"), filepath.Join(dir, "pub.pem"))

	created, err := m.EnsureKeyPair()
	require.NoError(t, err)
	assert.True(t, created)
	first, err := m.LoadPublicKey()
	require.NoError(t, err)

	reloaded := NewKeyManager(m.Paths())
	created, err = reloaded.EnsureKeyPair()
	require.NoError(t, err)
	assert.False(t, created)
	second, err := reloaded.LoadPublicKey()
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	info, err := os.Stat(filepath.Join(dir, "priv.pem"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnsureKeyPairRestoresPublicKey(t *testing.T) {
	m := newManager(t)
	priv, pub := m.Paths()
	fp := domain.FingerprintOf([]byte("issued before restart"))
	sig, err := NewSigner(m).Sign(fp)
	require.NoError(t, err)
	before, err := os.ReadFile(priv)
	require.NoError(t, err)

	require.NoError(t, os.Remove(pub))
	restarted := NewKeyManager(priv, pub)
	created, err := restarted.EnsureKeyPair()
	require.NoError(t, err)
	assert.False(t, created)

	after, err := os.ReadFile(priv)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.FileExists(t, pub)

	ok, err := NewVerifier(NewKeyManager(priv, pub)).Verify(fp, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureKeyPairReplacesOrphanedPublicKey(t *testing.T) {
	m := newManager(t)
	priv, pub := m.Paths()
	old, err := m.LoadPublicKey()
	require.NoError(t, err)

	require.NoError(t, os.Remove(priv))
	created, err := NewKeyManager(priv, pub).EnsureKeyPair()
	require.NoError(t, err)
	assert.True(t, created)

	fresh, err := NewKeyManager(priv, pub).LoadPublicKey()
	require.NoError(t, err)
	assert.False(t, old.Equal(fresh))
}

func TestGenerateKeyPairInvalidatesOldSignatures(t *testing.T) {
	m := newManager(t)
	fp := domain.FingerprintOf([]byte("before rotation"))
	sig, err := NewSigner(m).Sign(fp)
	require.NoError(t, err)

	_, err = m.GenerateKeyPair()
	require.NoError(t, err)

	ok, err := NewVerifier(m).Verify(fp, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateKeyPairError(t *testing.T) {
	old := rsaGenerateKey
	rsaGenerateKey = func(io.Reader, int) (*rsa.PrivateKey, error) { return nil, errors.New("boom") }
	defer func() { rsaGenerateKey = old }()

	dir := t.TempDir()
	_, err := NewKeyManager(filepath.Join(dir, "a"), filepath.Join(dir, "b")).GenerateKeyPair()
	assert.Error(t, err)
}

func TestPublicKeyPEM(t *testing.T) {
	m := newManager(t)
	pemBytes, err := m.PublicKeyPEM()
	require.NoError(t, err)
	assert.Contains(t, string(pemBytes), "BEGIN PUBLIC KEY")
}

func TestConcurrentSignVerify(t *testing.T) {
	m := newManager(t)
	signer, verifier := NewSigner(m), NewVerifier(m)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := domain.FingerprintOf([]byte(fmt.Sprintf("concurrent-%d", i)))
			sig, err := signer.Sign(fp)
			if err != nil {
				errs <- err
				return
			}
			ok, err := verifier.Verify(fp, sig)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- fmt.Errorf("signature %d did not verify", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
