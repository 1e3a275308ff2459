package pdf

import (
	"bytes"
	"fmt"
	"strings"

	pdflib "github.com/digitorus/pdf"
)

// Metadata is the subset of the document information dictionary used for
// fingerprinting.
type Metadata struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Document is a parsed, read-only PDF.
type Document struct {
	r *pdflib.Reader
}

// Open parses data as a PDF. The parser panics on some malformed inputs;
// those panics are returned as errors.
func Open(data []byte) (doc *Document, err error) {
	defer recoverInto(&err, "open pdf")

	if len(data) == 0 {
		return nil, fmt.Errorf("open pdf: empty document")
	}
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &Document{r: r}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() (n int, err error) {
	defer recoverInto(&err, "count pages")
	return d.r.NumPage(), nil
}

// Metadata reads Title and Author from the trailer's Info dictionary. Missing
// entries are empty strings.
func (d *Document) Metadata() (md Metadata, err error) {
	defer recoverInto(&err, "read metadata")

	info := d.r.Trailer().Key("Info")
	if info.IsNull() {
		return Metadata{}, nil
	}
	return Metadata{
		Title:  info.Key("Title").Text(),
		Author: info.Key("Author").Text(),
	}, nil
}

// ExtractText returns the text shown on the zero-based page index. Text is
// rebuilt from the string operands of the show-text operators, so the spaces
// the document encodes are kept. Images and form XObjects are not
// interpreted, so stamped images never contribute text.
func (d *Document) ExtractText(page int) (text string, err error) {
	defer recoverInto(&err, fmt.Sprintf("extract text from page %d", page))

	if page < 0 || page >= d.r.NumPage() {
		return "", fmt.Errorf("page %d out of range", page)
	}
	p := d.r.Page(page + 1)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d has no page object", page)
	}

	w := &textWriter{}
	for _, strm := range contentStreams(p.V.Key("Contents")) {
		pdflib.Interpret(strm, func(stk *pdflib.Stack, op string) {
			args := make([]pdflib.Value, stk.Len())
			for i := len(args) - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}
			w.apply(p, op, args)
		})
	}
	return w.String(), nil
}

// contentStreams flattens a page's Contents entry, which is either a single
// stream or an array of streams.
func contentStreams(v pdflib.Value) []pdflib.Value {
	if v.Kind() != pdflib.Array {
		return []pdflib.Value{v}
	}
	out := make([]pdflib.Value, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.Index(i))
	}
	return out
}

// kernSpace is the TJ displacement, in thousandths of an em, past which a
// positioning adjustment reads as a word break.
const kernSpace = 250

type textWriter struct {
	b   strings.Builder
	enc pdflib.TextEncoding
}

func (w *textWriter) String() string { return w.b.String() }

func (w *textWriter) show(raw string) {
	if w.enc == nil {
		w.b.WriteString(raw)
		return
	}
	w.b.WriteString(w.enc.Decode(raw))
}

// newline starts a new line unless the text is empty or already ends one.
func (w *textWriter) newline() {
	if n := w.b.Len(); n > 0 && w.b.String()[n-1] != '\n' {
		w.b.WriteByte('\n')
	}
}

func (w *textWriter) apply(p pdflib.Page, op string, args []pdflib.Value) {
	switch op {
	case "Tf":
		if len(args) == 2 {
			w.enc = p.Font(args[0].Name()).Encoder()
		}
	case "Td", "TD", "T*", "Tm":
		w.newline()
	case "Tj":
		if len(args) == 1 {
			w.show(args[0].RawString())
		}
	case "'", "\"":
		if len(args) > 0 {
			w.newline()
			w.show(args[len(args)-1].RawString())
		}
	case "TJ":
		if len(args) != 1 {
			return
		}
		arr := args[0]
		for i := 0; i < arr.Len(); i++ {
			x := arr.Index(i)
			if x.Kind() == pdflib.String {
				w.show(x.RawString())
			} else if -x.Float64() > kernSpace {
				w.b.WriteByte(' ')
			}
		}
	}
}

func recoverInto(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: malformed document: %v", op, r)
	}
}
