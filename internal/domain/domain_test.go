package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintOf(t *testing.T) {
	// sha256("")
	assert.Equal(t, Fingerprint("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"), FingerprintOf(nil))
	assert.Equal(t, FingerprintOf([]byte("abc")), FingerprintOf([]byte("abc")))
	assert.NotEqual(t, FingerprintOf([]byte("abc")), FingerprintOf([]byte("abd")))
}

func TestFingerprintValidate(t *testing.T) {
	assert.NoError(t, FingerprintOf([]byte("x")).Validate())

	err := Fingerprint("abc").Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = Fingerprint(strings.Repeat("z", FingerprintLength)).Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFingerprintShort(t *testing.T) {
	fp := FingerprintOf([]byte("x"))
	assert.Len(t, fp.Short(), 16)
	assert.Equal(t, "abc", Fingerprint("abc").Short())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{ErrKeyLoad, KindKeyLoad},
		{fmt.Errorf("sign: %w: %w", ErrSigning, ErrKeyLoad), KindKeyLoad},
		{fmt.Errorf("scan: %w", ErrAttestationNotFound), KindAttestationNotFound},
		{fmt.Errorf("parse: %w", ErrAttestationMalformed), KindAttestationMalformed},
		{ErrDocumentTooLarge, KindDocumentTooLarge},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}
