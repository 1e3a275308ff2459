package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	_ "golang.org/x/image/tiff"
)

// Corner anchors an embedded image on the page.
type Corner string

const (
	BottomRight Corner = "br"
	BottomLeft  Corner = "bl"
	TopRight    Corner = "tr"
	TopLeft     Corner = "tl"
)

// Placement controls where and how large an embedded image is drawn.
type Placement struct {
	Corner Corner
	// Margin is the distance from both page edges, in points.
	Margin float64
	// Width is the rendered width in points; the aspect ratio is kept.
	Width float64
}

// DefaultPlacement puts a 110pt image in the bottom-right corner.
func DefaultPlacement() Placement {
	return Placement{Corner: BottomRight, Margin: 20, Width: 110}
}

func (p Placement) description(imgWidth int) string {
	dx, dy := p.Margin, p.Margin
	switch p.Corner {
	case BottomRight:
		dx = -dx
	case TopRight:
		dx, dy = -dx, -dy
	case TopLeft:
		dy = -dy
	}
	scale := 1.0
	if imgWidth > 0 && p.Width > 0 {
		scale = p.Width / float64(imgWidth)
	}
	return fmt.Sprintf("position:%s, offset:%.0f %.0f, scalefactor:%.4f abs, rotation:0, opacity:1",
		p.Corner, dx, dy, scale)
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// EmbedImage draws img on the zero-based page of doc and returns the new
// document. The image goes in as an XObject, so no text is added to the page.
func EmbedImage(doc []byte, page int, img image.Image, at Placement) ([]byte, error) {
	if page < 0 {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	var out bytes.Buffer
	pages := []string{strconv.Itoa(page + 1)}
	desc := at.description(img.Bounds().Dx())
	wm, err := api.ImageWatermarkForReader(&encoded, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("prepare image: %w", err)
	}
	if err := api.AddWatermarks(bytes.NewReader(doc), &out, pages, wm, newConfiguration()); err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}
	return out.Bytes(), nil
}

// PageImage is a decoded raster image and the zero-based page it was found on.
type PageImage struct {
	Page  int
	Image image.Image
}

// ExtractImages decodes every raster image in doc, ordered by page. Images in
// encodings the standard decoders do not handle are skipped.
func ExtractImages(doc []byte) ([]PageImage, error) {
	var found []PageImage
	digest := func(img model.Image, _ bool, _ int) error {
		if img.Reader == nil {
			return nil
		}
		decoded, _, err := image.Decode(img)
		if err != nil {
			return nil
		}
		found = append(found, PageImage{Page: img.PageNr - 1, Image: decoded})
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(doc), nil, digest, newConfiguration()); err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Page < found[j].Page })
	return found, nil
}
