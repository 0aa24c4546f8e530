package extract

import (
	"context"
	"fmt"
	"strings"

	"rsc.io/pdf"

	"github.com/minki/fundscan/internal/models"
)

// PDFBackend extracts text natively from digitally-born PDFs. Scanned PDFs
// yield empty text here and fall through to OCR.
type PDFBackend struct{}

func NewPDFBackend() *PDFBackend { return &PDFBackend{} }

func (b *PDFBackend) Name() models.DataSource { return models.SourceNativeParse }

func (b *PDFBackend) Supports(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// Extract reads all page content streams. The pdf library panics on malformed
// files, so the whole read is wrapped in a recover.
func (b *PDFBackend) Extract(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf parse panic for %s: %v", path, r)
		}
	}()

	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		var lastY float64
		for _, t := range content.Text {
			if lastY != 0 && t.Y != lastY {
				sb.WriteByte('\n')
			}
			sb.WriteString(t.S)
			lastY = t.Y
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
