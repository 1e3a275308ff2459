package storage

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the path-style subset of the S3 REST API the store uses.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

type listResult struct {
	XMLName     xml.Name     `xml:"ListBucketResult"`
	Name        string       `xml:"Name"`
	Prefix      string       `xml:"Prefix"`
	KeyCount    int          `xml:"KeyCount"`
	IsTruncated bool         `xml:"IsTruncated"`
	Contents    []listObject `xml:"Contents"`
}

type listObject struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	Size         int64  `xml:"Size"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPut && key != "":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet && key != "":
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)

	case r.Method == http.MethodDelete && key != "":
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && key == "":
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: bucket, Prefix: prefix}
		for k, v := range f.objects {
			if strings.HasPrefix(k, prefix) {
				res.Contents = append(res.Contents, listObject{
					Key:          k,
					LastModified: "2024-05-01T12:00:00.000Z",
					Size:         int64(len(v)),
				})
			}
		}
		sort.Slice(res.Contents, func(i, j int) bool { return res.Contents[i].Key < res.Contents[j].Key })
		res.KeyCount = len(res.Contents)
		w.Header().Set("Content-Type", "application/xml")
		xml.NewEncoder(w).Encode(res)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3Store(t *testing.T) *S3Store {
	t.Helper()
	srv := httptest.NewServer(&fakeS3{objects: map[string][]byte{}})
	t.Cleanup(srv.Close)

	s, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "docs",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	return s
}

func TestS3StoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newS3Store(t)

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
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), objects[0].ModTime.UTC())

	require.NoError(t, s.Delete(ctx, "signed/signed_a.pdf"))
	_, err = s.Download(ctx, "signed/signed_a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3StorePresignedURL(t *testing.T) {
	s := newS3Store(t)

	url, err := s.GetPresignedURL(context.Background(), "signed/signed_b.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "/docs/signed/signed_b.pdf")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

func TestS3StoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	s := newS3Store(t)

	assert.Error(t, s.Upload(ctx, "../escape.pdf", bytes.NewReader(nil)))
	_, err := s.Download(ctx, "/abs.pdf")
	assert.Error(t, err)
	_, err = s.GetPresignedURL(ctx, "", time.Minute)
	assert.Error(t, err)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
