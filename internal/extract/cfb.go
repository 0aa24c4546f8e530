package extract

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Minimal CFB (compound file binary) reader, just enough to pull named
// streams out of an HWP 5.x container: FAT chains, the directory, and the
// mini stream for streams under the 4096-byte cutoff.

const (
	cfbEndOfChain = 0xFFFFFFFE
	cfbFreeSector = 0xFFFFFFFF
	cfbMiniCutoff = 4096
)

var cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

type cfbEntry struct {
	name        string
	objectType  byte
	startSector uint32
	size        uint64
}

type cfbReader struct {
	data       []byte
	sectorSize int
	miniSize   int
	fat        []uint32
	miniFAT    []uint32
	entries    []cfbEntry
	miniStream []byte
}

func (r *cfbReader) sector(n uint32) ([]byte, error) {
	off := 512 + int(n)*r.sectorSize
	if off+r.sectorSize > len(r.data) {
		return nil, fmt.Errorf("cfb: sector %d out of range", n)
	}
	return r.data[off : off+r.sectorSize], nil
}

// chain reads a full FAT sector chain.
func (r *cfbReader) chain(start uint32) ([]byte, error) {
	var out []byte
	for s := start; s != cfbEndOfChain && s != cfbFreeSector; {
		sec, err := r.sector(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sec...)
		if int(s) >= len(r.fat) {
			return nil, fmt.Errorf("cfb: FAT index %d out of range", s)
		}
		s = r.fat[s]
	}
	return out, nil
}

func parseCFB(data []byte) (*cfbReader, error) {
	if len(data) < 512 {
		return nil, fmt.Errorf("cfb: file too small (%d bytes)", len(data))
	}
	for i, b := range cfbSignature {
		if data[i] != b {
			return nil, fmt.Errorf("cfb: bad signature")
		}
	}

	r := &cfbReader{
		data:       data,
		sectorSize: 1 << binary.LittleEndian.Uint16(data[30:]),
		miniSize:   1 << binary.LittleEndian.Uint16(data[32:]),
	}

	numFAT := binary.LittleEndian.Uint32(data[44:])
	firstDir := binary.LittleEndian.Uint32(data[48:])
	firstMiniFAT := binary.LittleEndian.Uint32(data[60:])
	numMiniFAT := binary.LittleEndian.Uint32(data[64:])
	firstDIFAT := binary.LittleEndian.Uint32(data[68:])
	numDIFAT := binary.LittleEndian.Uint32(data[72:])

	// DIFAT: 109 entries in the header, continuation sectors after that.
	var fatSectors []uint32
	for i := 0; i < 109 && uint32(i) < numFAT; i++ {
		s := binary.LittleEndian.Uint32(data[76+i*4:])
		if s != cfbFreeSector {
			fatSectors = append(fatSectors, s)
		}
	}
	difat := firstDIFAT
	for i := uint32(0); i < numDIFAT && difat != cfbEndOfChain && difat != cfbFreeSector; i++ {
		sec, err := r.sector(difat)
		if err != nil {
			return nil, err
		}
		perSector := r.sectorSize/4 - 1
		for j := 0; j < perSector; j++ {
			s := binary.LittleEndian.Uint32(sec[j*4:])
			if s != cfbFreeSector {
				fatSectors = append(fatSectors, s)
			}
		}
		difat = binary.LittleEndian.Uint32(sec[len(sec)-4:])
	}

	for _, fs := range fatSectors {
		sec, err := r.sector(fs)
		if err != nil {
			return nil, err
		}
		for j := 0; j+4 <= len(sec); j += 4 {
			r.fat = append(r.fat, binary.LittleEndian.Uint32(sec[j:]))
		}
	}

	dirData, err := r.chain(firstDir)
	if err != nil {
		return nil, fmt.Errorf("cfb: read directory: %w", err)
	}
	for off := 0; off+128 <= len(dirData); off += 128 {
		e := dirData[off : off+128]
		nameLen := int(binary.LittleEndian.Uint16(e[64:]))
		if nameLen < 2 || nameLen > 64 {
			continue
		}
		u16 := make([]uint16, (nameLen-2)/2)
		for i := range u16 {
			u16[i] = binary.LittleEndian.Uint16(e[i*2:])
		}
		r.entries = append(r.entries, cfbEntry{
			name:        string(utf16.Decode(u16)),
			objectType:  e[66],
			startSector: binary.LittleEndian.Uint32(e[116:]),
			size:        binary.LittleEndian.Uint64(e[120:]),
		})
	}

	// Root entry holds the mini stream.
	for _, e := range r.entries {
		if e.objectType == 5 {
			if e.size > 0 {
				ms, err := r.chain(e.startSector)
				if err != nil {
					return nil, fmt.Errorf("cfb: read mini stream: %w", err)
				}
				r.miniStream = ms
			}
			break
		}
	}

	if numMiniFAT > 0 && firstMiniFAT != cfbEndOfChain {
		mf, err := r.chain(firstMiniFAT)
		if err != nil {
			return nil, fmt.Errorf("cfb: read mini FAT: %w", err)
		}
		for j := 0; j+4 <= len(mf); j += 4 {
			r.miniFAT = append(r.miniFAT, binary.LittleEndian.Uint32(mf[j:]))
		}
	}

	return r, nil
}

func (r *cfbReader) miniChain(start uint32, size uint64) ([]byte, error) {
	var out []byte
	for s := start; s != cfbEndOfChain && s != cfbFreeSector; {
		off := int(s) * r.miniSize
		if off+r.miniSize > len(r.miniStream) {
			return nil, fmt.Errorf("cfb: mini sector %d out of range", s)
		}
		out = append(out, r.miniStream[off:off+r.miniSize]...)
		if int(s) >= len(r.miniFAT) {
			return nil, fmt.Errorf("cfb: mini FAT index %d out of range", s)
		}
		s = r.miniFAT[s]
	}
	if uint64(len(out)) > size {
		out = out[:size]
	}
	return out, nil
}

// stream returns a named stream's bytes. HWP stream names are unique across
// the container, so lookup is by entry name rather than full path.
func (r *cfbReader) stream(name string) ([]byte, error) {
	for _, e := range r.entries {
		if e.objectType != 2 || e.name != name {
			continue
		}
		if e.size < cfbMiniCutoff {
			return r.miniChain(e.startSector, e.size)
		}
		data, err := r.chain(e.startSector)
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) > e.size {
			data = data[:e.size]
		}
		return data, nil
	}
	return nil, fmt.Errorf("cfb: stream %q not found", name)
}
