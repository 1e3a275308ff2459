package attestation

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

// ErrNoCode reports that an image holds no decodable QR code.
var ErrNoCode = errors.New("no QR code found in image")

// Codec turns payloads into images and back.
type Codec interface {
	Encode(payload []byte, caption string) (image.Image, error)
	// Decode returns ErrNoCode when img holds no readable code.
	Decode(img image.Image) ([]byte, error)
}

// DefaultScales is the decode retry order. Extracted images are often stored
// at a resolution the detector dislikes, so the image is resampled and retried
// before giving up.
var DefaultScales = []float64{1.0, 2.0, 0.5, 3.0}

const minDecodeSide = 21

// QRCodec encodes with go-qrcode and decodes with gozxing.
type QRCodec struct {
	modulePixels int
	level        qrcode.RecoveryLevel
	scales       []float64
}

// NewQRCodec returns a codec drawing modulePixels pixels per QR module.
func NewQRCodec(modulePixels int) *QRCodec {
	if modulePixels <= 0 {
		modulePixels = 4
	}
	return &QRCodec{modulePixels: modulePixels, level: qrcode.Medium, scales: DefaultScales}
}

func (c *QRCodec) Encode(payload []byte, caption string) (image.Image, error) {
	if len(payload) == 0 {
		return nil, errors.New("encode qr: empty payload")
	}
	q, err := qrcode.New(string(payload), c.level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	// negative size means pixels per module
	img := q.Image(-c.modulePixels)
	if caption == "" {
		return img, nil
	}
	return withCaption(img, caption), nil
}

func (c *QRCodec) Decode(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoCode
	}
	for _, s := range c.scales {
		candidate := resample(img, s)
		if candidate == nil {
			continue
		}
		if text, ok := decodeOnce(candidate); ok {
			return []byte(text), nil
		}
	}
	return nil, ErrNoCode
}

func decodeOnce(img image.Image) (text string, ok bool) {
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", false
	}
	return res.GetText(), true
}

func resample(img image.Image, scale float64) image.Image {
	if scale == 1 {
		return img
	}
	b := img.Bounds()
	w, h := int(float64(b.Dx())*scale), int(float64(b.Dy())*scale)
	if w < minDecodeSide || h < minDecodeSide {
		return nil
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if scale > 1 {
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return dst
}
