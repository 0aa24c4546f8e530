package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/minki/fundscan/internal/models"
)

// TesseractOCR is the last-resort backend for scanned documents. It shells
// out to the tesseract CLI with Korean+English language data.
type TesseractOCR struct {
	binPath   string
	languages string
}

// NewTesseractOCR creates the OCR backend. Empty binPath defaults to
// "tesseract", empty languages to "kor+eng".
func NewTesseractOCR(binPath, languages string) *TesseractOCR {
	if binPath == "" {
		binPath = "tesseract"
	}
	if languages == "" {
		languages = "kor+eng"
	}
	return &TesseractOCR{binPath: binPath, languages: languages}
}

func (t *TesseractOCR) Name() models.DataSource { return models.SourceGenericOCR }

func (t *TesseractOCR) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return true
	}
	return false
}

func (t *TesseractOCR) Extract(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, path, "stdout", "-l", t.languages)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed for %s: %v: %s", filepath.Base(path), err, stderr.String())
	}
	return stdout.String(), nil
}
