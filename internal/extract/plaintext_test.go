package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minki/fundscan/internal/models"
)

func TestPlainTextBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listing-body.txt")
	require.NoError(t, os.WriteFile(path, []byte("지원대상: 창업 7년 이내 중소기업\n"), 0o644))

	b := NewPlainTextBackend()
	assert.True(t, b.Supports(path))
	assert.True(t, b.Supports("BODY.TXT"))
	assert.False(t, b.Supports("공고문.hwp"))
	assert.False(t, b.Supports("공고문.pdf"))

	text, err := b.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "지원대상: 창업 7년 이내 중소기업", text)
}

func TestPlainTextBackend_MissingFile(t *testing.T) {
	_, err := NewPlainTextBackend().Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

// The listing body must survive the document-backend chain: a .txt file is
// readable by nothing else, so the chain head has to pick it up.
func TestEngine_ListingBodyReadableByChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listing-body.txt")
	require.NoError(t, os.WriteFile(path, []byte("□ 사업개요\n중소기업 기술개발 지원"), 0o644))

	engine := NewEngine(
		NewPlainTextBackend(),
		NewHWPBackend(),
		NewPDFBackend(),
	)

	out, err := engine.ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, models.SourceListing, out.Source)
	assert.Contains(t, out.Text, "기술개발 지원")
	require.Len(t, out.Attempts, 1, "document backends must not be tried for text files")
}
