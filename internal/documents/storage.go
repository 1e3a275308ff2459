package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"docseal/signature-backend/internal/domain"
	"docseal/signature-backend/pkg/storage"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type StorageProvider struct {
	store         storage.ObjectStore
	prefix        string
	presignExpiry time.Duration
}

func NewStorageProvider(store storage.ObjectStore, prefix string, presignExpiry time.Duration) *StorageProvider {
	return &StorageProvider{
		store:         store,
		prefix:        prefix,
		presignExpiry: presignExpiry,
	}
}

// SignedName derives the stored file name for a signed upload. The
// transaction id keeps uploads that share a file name apart.
func SignedName(transactionID, filename string) string {
	name := safeName(filename, "document.pdf")
	if tx := safeName(transactionID, ""); tx != "" {
		return "signed_" + tx + "_" + name
	}
	return "signed_" + name
}

// safeName reduces a client-supplied name to a bare file name.
func safeName(filename, fallback string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "_"), "._")
	if base == "" {
		return fallback
	}
	return base
}

func (p *StorageProvider) GenerateKey(name string) string {
	return p.prefix + name
}

func (p *StorageProvider) Save(ctx context.Context, name string, data []byte) error {
	return p.store.Upload(ctx, p.GenerateKey(name), bytes.NewReader(data))
}

func (p *StorageProvider) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: invalid file name %q", domain.ErrInvalidInput, name)
	}
	rc, err := p.store.Download(ctx, p.GenerateKey(name))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return rc, err
}

// DownloadURL prefers a presigned backend URL and falls back to the API route.
func (p *StorageProvider) DownloadURL(ctx context.Context, name, apiPath string) string {
	if url, err := p.store.GetPresignedURL(ctx, p.GenerateKey(name), p.presignExpiry); err == nil && url != "" {
		return url
	}
	return apiPath + name
}
