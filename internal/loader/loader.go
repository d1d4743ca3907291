// Package loader parses and writes Viua's binary bytecode container
// format: an optional jump table, the block and function address tables,
// and the raw instruction bytes.
package loader

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Image is a parsed bytecode file: its address tables, the jump
// positions that need relocating when the image is linked at a non-zero
// offset, and the raw instruction bytes.
type Image struct {
	// Jumps holds the byte offsets, within Code, of every absolute int32
	// jump target that must be rewritten when this image is concatenated
	// into a host image at a non-zero base — populated only for library
	// images (those assembled with --lib).
	Jumps []uint32

	Blocks    map[string]uint16
	Functions map[string]uint16

	Code []byte

	// Library reports whether this image carries a jump table, i.e.
	// whether it was parsed/will be written in --lib form.
	Library bool
}

func NewImage() *Image {
	return &Image{Blocks: make(map[string]uint16), Functions: make(map[string]uint16)}
}

// Load parses a bytecode container from r. asLib must match how the image
// was assembled: library images are prefixed with a jump table that
// executable images lack.
func Load(r io.Reader, asLib bool) (*Image, error) {
	img := NewImage()
	img.Library = asLib

	if asLib {
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, errors.Wrap(err, "loader: reading jump table count")
		}
		img.Jumps = make([]uint32, count)
		for i := range img.Jumps {
			if err := binary.Read(r, binary.LittleEndian, &img.Jumps[i]); err != nil {
				return nil, errors.Wrapf(err, "loader: reading jump table entry %d", i)
			}
		}
	}

	var err error
	img.Blocks, err = readNameTable(r)
	if err != nil {
		return nil, errors.Wrap(err, "loader: reading block table")
	}
	img.Functions, err = readNameTable(r)
	if err != nil {
		return nil, errors.Wrap(err, "loader: reading function table")
	}

	var codeSize uint16
	if err := binary.Read(r, binary.LittleEndian, &codeSize); err != nil {
		return nil, errors.Wrap(err, "loader: reading code size")
	}
	img.Code = make([]byte, codeSize)
	if _, err := io.ReadFull(r, img.Code); err != nil {
		return nil, errors.Wrap(err, "loader: reading code")
	}

	return img, nil
}

func readNameTable(r io.Reader) (map[string]uint16, error) {
	var tableSize uint16
	if err := binary.Read(r, binary.LittleEndian, &tableSize); err != nil {
		return nil, err
	}
	buf := make([]byte, tableSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	table := make(map[string]uint16)
	pos := 0
	for pos < len(buf) {
		start := pos
		for pos < len(buf) && buf[pos] != 0 {
			pos++
		}
		if pos >= len(buf) {
			return nil, errors.New("loader: unterminated name in address table")
		}
		name := string(buf[start:pos])
		pos++ // NUL
		if pos+2 > len(buf) {
			return nil, errors.New("loader: truncated offset in address table")
		}
		table[name] = binary.LittleEndian.Uint16(buf[pos : pos+2])
		pos += 2
	}
	return table, nil
}

// Write serializes img to w in the same format Load expects, honoring
// img.Library to decide whether a jump table is emitted.
func Write(w io.Writer, img *Image) error {
	if img.Library {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(img.Jumps))); err != nil {
			return errors.Wrap(err, "loader: writing jump table count")
		}
		for _, j := range img.Jumps {
			if err := binary.Write(w, binary.LittleEndian, j); err != nil {
				return errors.Wrap(err, "loader: writing jump table entry")
			}
		}
	}
	if err := writeNameTable(w, img.Blocks); err != nil {
		return errors.Wrap(err, "loader: writing block table")
	}
	if err := writeNameTable(w, img.Functions); err != nil {
		return errors.Wrap(err, "loader: writing function table")
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(img.Code))); err != nil {
		return errors.Wrap(err, "loader: writing code size")
	}
	if _, err := w.Write(img.Code); err != nil {
		return errors.Wrap(err, "loader: writing code")
	}
	return nil
}

func writeNameTable(w io.Writer, table map[string]uint16) error {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	// Sorted for a deterministic encoding: byte-identical re-assembly of
	// the same source must round-trip through disassembly exactly.
	slices.Sort(names)

	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteByte(0)
		var off [2]byte
		binary.LittleEndian.PutUint16(off[:], table[name])
		buf.Write(off[:])
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(buf.Len())); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Relocate adds offset to every little-endian int32 jump target recorded
// at the byte positions in img.Jumps, and to every function/block table
// entry — the fix-up step performed when this image is statically linked
// into a host image at a non-zero base.
func Relocate(img *Image, offset uint16) {
	for _, pos := range img.Jumps {
		p := int(pos)
		if p+4 > len(img.Code) {
			continue
		}
		v := binary.LittleEndian.Uint32(img.Code[p : p+4])
		binary.LittleEndian.PutUint32(img.Code[p:p+4], v+uint32(offset))
	}
	for name, off := range img.Functions {
		img.Functions[name] = off + offset
	}
	for name, off := range img.Blocks {
		img.Blocks[name] = off + offset
	}
}
