package extract

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/minki/fundscan/internal/models"
)

const hwpSignature = "HWP Document File"

// hwpTagParaText is the body-text record tag (HWPTAG_BEGIN + 51).
const hwpTagParaText = 67

// HWPBackend extracts text natively from HWP 5.x binary files and HWPX
// (OWPML zip) files, the two formats Korean agencies attach announcements in.
type HWPBackend struct{}

func NewHWPBackend() *HWPBackend { return &HWPBackend{} }

func (b *HWPBackend) Name() models.DataSource { return models.SourceNativeParse }

func (b *HWPBackend) Supports(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".hwp") || strings.HasSuffix(lower, ".hwpx")
}

func (b *HWPBackend) Extract(ctx context.Context, path string) (text string, err error) {
	// Malformed containers can walk bad offsets; keep one file's corruption
	// from taking down the worker.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("hwp parse panic for %s: %v", path, r)
		}
	}()

	if strings.HasSuffix(strings.ToLower(path), ".hwpx") {
		return extractHWPX(path)
	}
	return extractHWP(path)
}

// extractHWP reads an HWP 5.x compound file: FileHeader for the compression
// flag, then each BodyText section stream in order.
func extractHWP(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read hwp %s: %w", path, err)
	}
	cfb, err := parseCFB(data)
	if err != nil {
		return "", fmt.Errorf("parse hwp container %s: %w", path, err)
	}

	header, err := cfb.stream("FileHeader")
	if err != nil {
		return "", fmt.Errorf("hwp %s: %w", path, err)
	}
	if len(header) < 37 || !strings.HasPrefix(string(header), hwpSignature) {
		return "", fmt.Errorf("hwp %s: not an HWP 5.x file", path)
	}
	compressed := header[36]&0x01 != 0
	if header[36]&0x02 != 0 {
		return "", fmt.Errorf("hwp %s: password protected", path)
	}

	var sb strings.Builder
	for i := 0; ; i++ {
		section, err := cfb.stream(fmt.Sprintf("Section%d", i))
		if err != nil {
			if i == 0 {
				return "", fmt.Errorf("hwp %s: no body sections", path)
			}
			break
		}
		if compressed {
			section, err = inflateRaw(section)
			if err != nil {
				return "", fmt.Errorf("hwp %s section %d: %w", path, i, err)
			}
		}
		decodeSectionText(section, &sb)
	}
	return sb.String(), nil
}

func inflateRaw(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	// Truncated tail records still leave usable text; keep what inflated.
	return out, nil
}

// decodeSectionText walks a section's record stream and decodes paragraph
// text records. Record header: tag 10 bits, level 10 bits, size 12 bits; a
// size of 0xFFF means the real size follows in the next dword.
func decodeSectionText(section []byte, sb *strings.Builder) {
	for off := 0; off+4 <= len(section); {
		h := binary.LittleEndian.Uint32(section[off:])
		off += 4
		tag := h & 0x3FF
		size := int(h >> 20 & 0xFFF)
		if size == 0xFFF {
			if off+4 > len(section) {
				return
			}
			size = int(binary.LittleEndian.Uint32(section[off:]))
			off += 4
		}
		if off+size > len(section) {
			return
		}
		if tag == hwpTagParaText {
			decodeParaText(section[off:off+size], sb)
		}
		off += size
	}
}

// decodeParaText decodes one paragraph's UTF-16LE text. Characters below 32
// are controls: 10 and 13 break lines, codes up to 23 are extended controls
// that occupy eight code units in total.
func decodeParaText(data []byte, sb *strings.Builder) {
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+2 <= len(data); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(data[i:]))
	}
	var runs []uint16
	for i := 0; i < len(units); i++ {
		c := units[i]
		if c >= 32 {
			runs = append(runs, c)
			continue
		}
		switch {
		case c == 10 || c == 13:
			runs = append(runs, '\n')
		case c <= 23:
			i += 7
		}
	}
	sb.WriteString(string(utf16.Decode(runs)))
	sb.WriteByte('\n')
}

// extractHWPX reads an HWPX zip and concatenates the character data of every
// text element in the Contents section files.
func extractHWPX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open hwpx %s: %w", path, err)
	}
	defer zr.Close()

	var sb strings.Builder
	found := false
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "Contents/section") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		found = true
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("hwpx %s: open %s: %w", path, f.Name, err)
		}
		if err := decodeHWPXSection(rc, &sb); err != nil {
			rc.Close()
			return "", fmt.Errorf("hwpx %s: %s: %w", path, f.Name, err)
		}
		rc.Close()
	}
	if !found {
		return "", fmt.Errorf("hwpx %s: no section files", path)
	}
	return sb.String(), nil
}

func decodeHWPXSection(r io.Reader, sb *strings.Builder) error {
	dec := xml.NewDecoder(r)
	inText := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText++
			}
			if t.Name.Local == "p" {
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText--
			}
		case xml.CharData:
			if inText > 0 {
				sb.Write(t)
			}
		}
	}
}
