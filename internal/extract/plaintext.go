package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/minki/fundscan/internal/models"
)

// PlainTextBackend passes stored UTF-8 text files through unchanged. The
// discovery pass saves the sanitized detail-page body as listing-body.txt next
// to the downloaded attachments; without this backend a body-only announcement
// would have no readable attachment at all.
type PlainTextBackend struct{}

func NewPlainTextBackend() *PlainTextBackend { return &PlainTextBackend{} }

func (*PlainTextBackend) Name() models.DataSource { return models.SourceListing }

func (*PlainTextBackend) Supports(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".txt"
}

func (*PlainTextBackend) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
