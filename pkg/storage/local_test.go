package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "signed/signed_a.pdf", bytes.NewReader([]byte("aaa"))))
	require.NoError(t, s.Upload(ctx, "signed/signed_b.pdf", bytes.NewReader([]byte("bb"))))
	require.NoError(t, s.Upload(ctx, "other.txt", bytes.NewReader([]byte("x"))))

	rc, err := s.Download(ctx, "signed/signed_a.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(body))

	objects, err := s.List(ctx, "signed/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "signed/signed_a.pdf", objects[0].Key)
	assert.Equal(t, int64(3), objects[0].Size)
	assert.False(t, objects[0].ModTime.IsZero())

	require.NoError(t, s.Delete(ctx, "signed/signed_a.pdf"))
	require.NoError(t, s.Delete(ctx, "signed/signed_a.pdf"))
	_, err = s.Download(ctx, "signed/signed_a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	url, err := s.GetPresignedURL(ctx, "signed/signed_b.pdf", 0)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestLocalStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "doc.pdf", bytes.NewReader([]byte("first"))))
	require.NoError(t, s.Upload(ctx, "doc.pdf", bytes.NewReader([]byte("second"))))

	rc, err := s.Download(ctx, "doc.pdf")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "/abs.pdf", "a/../../b", `a\b`, "a//b", "./a"} {
		assert.Error(t, s.Upload(ctx, key, bytes.NewReader(nil)), key)
		_, err := s.Download(ctx, key)
		assert.Error(t, err, key)
		assert.Error(t, s.Delete(ctx, key), key)
	}
}
