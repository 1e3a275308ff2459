package attestation

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"docseal/signature-backend/internal/domain"
	"docseal/signature-backend/pkg/pdf"
)

var sample = New(
	"TXN-001",
	domain.FingerprintOf([]byte("Invoice #1, $100")),
	[]byte{0xde, 0xad, 0xbe, 0xef},
	"2026-10-18T09:30:00Z",
	"https://verify.example.com",
)

func TestMarshalWireFormat(t *testing.T) {
	raw, err := sample.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"transaction_id": "TXN-001",
		"document_hash": "`+string(sample.DocumentHash)+`",
		"signature": "deadbeef",
		"timestamp": "2026-10-18T09:30:00Z",
		"verification_url": "https://verify.example.com"
	}`, string(raw))
}

func TestParse(t *testing.T) {
	raw, err := sample.Marshal()
	require.NoError(t, err)
	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	sig, err := got.DecodeSignature()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, sig)
}

func TestParseIgnoresUnknownFields(t *testing.T) {
	raw := `{"document_hash":"` + string(sample.DocumentHash) + `","signature":"00ff","issuer":"someone"}`
	got, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "00ff", got.Signature)
}

func TestParseRejectsMalformed(t *testing.T) {
	fp := string(sample.DocumentHash)
	cases := map[string]string{
		"not json":         `hello`,
		"missing hash":     `{"signature":"00ff"}`,
		"missing sig":      `{"document_hash":"` + fp + `"}`,
		"sig not hex":      `{"document_hash":"` + fp + `","signature":"zz"}`,
		"short hash":       `{"document_hash":"abc","signature":"00ff"}`,
		"hash wrong type":  `{"document_hash":42,"signature":"00ff"}`,
		"odd length sig":   `{"document_hash":"` + fp + `","signature":"abc"}`,
		"array not object": `[1,2,3]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.ErrorIs(t, err, domain.ErrAttestationMalformed)
		})
	}
}

func TestQRRoundTrip(t *testing.T) {
	codec := NewQRCodec(4)
	raw, err := sample.Marshal()
	require.NoError(t, err)

	for _, caption := range []string{"", "Digitally certified document\nScan to verify"} {
		img, err := codec.Encode(raw, caption)
		require.NoError(t, err)

		got, err := codec.Decode(img)
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
}

func TestCaptionExtendsImage(t *testing.T) {
	codec := NewQRCodec(4)
	plain, err := codec.Encode([]byte("payload"), "")
	require.NoError(t, err)
	captioned, err := codec.Encode([]byte("payload"), "line one\nline two")
	require.NoError(t, err)

	assert.Greater(t, captioned.Bounds().Dy(), plain.Bounds().Dy())
	assert.GreaterOrEqual(t, captioned.Bounds().Dx(), plain.Bounds().Dx())
}

func TestDecodeRetriesAtOtherScales(t *testing.T) {
	codec := NewQRCodec(1)
	raw := []byte(strings.Repeat("x", 40))
	img, err := codec.Encode(raw, "")
	require.NoError(t, err)

	// one pixel per module is below what the detector reads reliably; the
	// upscaled retries must still recover it
	got, err := codec.Decode(img)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecodeScaledDownImage(t *testing.T) {
	codec := NewQRCodec(8)
	raw, err := sample.Marshal()
	require.NoError(t, err)
	img, err := codec.Encode(raw, "")
	require.NoError(t, err)

	b := img.Bounds()
	small := image.NewGray(image.Rect(0, 0, b.Dx()/2, b.Dy()/2))
	draw.NearestNeighbor.Scale(small, small.Bounds(), img, b, draw.Src, nil)

	got, err := codec.Decode(small)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecodeWithoutCode(t *testing.T) {
	codec := NewQRCodec(4)

	blank := image.NewGray(image.Rect(0, 0, 200, 200))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	_, err := codec.Decode(blank)
	assert.ErrorIs(t, err, ErrNoCode)

	_, err = codec.Decode(image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrNoCode)

	_, err = codec.Decode(nil)
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestEncodeRejectsEmptyPayload(t *testing.T) {
	_, err := NewQRCodec(4).Encode(nil, "")
	assert.Error(t, err)
}

type stubCodec struct {
	payloads map[image.Image][]byte
}

func (c stubCodec) Encode([]byte, string) (image.Image, error) { return nil, errors.New("unused") }

func (c stubCodec) Decode(img image.Image) ([]byte, error) {
	if p, ok := c.payloads[img]; ok {
		return p, nil
	}
	return nil, ErrNoCode
}

func TestScanner(t *testing.T) {
	good, err := sample.Marshal()
	require.NoError(t, err)
	noise := image.NewGray(image.Rect(0, 0, 1, 1))
	code := image.NewGray(image.Rect(0, 0, 2, 2))
	junk := image.NewGray(image.Rect(0, 0, 3, 3))

	source := func(images ...pdf.PageImage) ImageSource {
		return func([]byte) ([]pdf.PageImage, error) { return images, nil }
	}
	codec := stubCodec{payloads: map[image.Image][]byte{code: good, junk: []byte("https://example.com")}}

	t.Run("finds code after other images", func(t *testing.T) {
		s := NewScanner(codec, source(pdf.PageImage{Page: 0, Image: noise}, pdf.PageImage{Page: 1, Image: code}), nil)
		got, err := s.Scan(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, sample, got)
	})

	t.Run("no images", func(t *testing.T) {
		_, err := NewScanner(codec, source(), nil).Scan(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrAttestationNotFound)
	})

	t.Run("only foreign codes", func(t *testing.T) {
		_, err := NewScanner(codec, source(pdf.PageImage{Image: junk}), nil).Scan(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrAttestationMalformed)
	})

	t.Run("foreign code before attestation", func(t *testing.T) {
		s := NewScanner(codec, source(pdf.PageImage{Image: junk}, pdf.PageImage{Image: code}), nil)
		got, err := s.Scan(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "TXN-001", got.TransactionID)
	})

	t.Run("unreadable document", func(t *testing.T) {
		broken := func([]byte) ([]pdf.PageImage, error) { return nil, errors.New("bad xref") }
		_, err := NewScanner(codec, broken, nil).Scan(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrAttestationNotFound)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewScanner(codec, source(pdf.PageImage{Image: code}), nil).Scan(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScannerReadsStampedDocument(t *testing.T) {
	doc, err := pdf.NewGenerator(pdf.DefaultOptions()).Generate(context.Background(), pdf.Receipt{
		Title:      "Invoice",
		Paragraphs: []string{"Invoice #1, $100"},
	})
	require.NoError(t, err)

	codec := NewQRCodec(4)
	raw, err := sample.Marshal()
	require.NoError(t, err)
	img, err := codec.Encode(raw, "Scan to verify")
	require.NoError(t, err)
	stamped, err := pdf.EmbedImage(doc, 0, img, pdf.DefaultPlacement())
	require.NoError(t, err)

	got, err := NewScanner(codec, nil, nil).Scan(context.Background(), stamped)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	_, err = NewScanner(codec, nil, nil).Scan(context.Background(), doc)
	assert.ErrorIs(t, err, domain.ErrAttestationNotFound)
}
