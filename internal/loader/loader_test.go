package loader

import (
	"bytes"
	"reflect"
	"testing"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	img := NewImage()
	img.Functions["main"] = 0
	img.Functions["__entry"] = 12
	img.Blocks["handler"] = 40
	img.Code = []byte{1, 2, 3, 4, 5}

	var buf bytes.Buffer
	if err := Write(&buf, img); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(&buf, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Functions, img.Functions) {
		t.Errorf("Functions mismatch: got %v, want %v", got.Functions, img.Functions)
	}
	if !reflect.DeepEqual(got.Blocks, img.Blocks) {
		t.Errorf("Blocks mismatch: got %v, want %v", got.Blocks, img.Blocks)
	}
	if !bytes.Equal(got.Code, img.Code) {
		t.Errorf("Code mismatch: got %v, want %v", got.Code, img.Code)
	}
}

func TestWriteLoadRoundTripLibrary(t *testing.T) {
	img := NewImage()
	img.Library = true
	img.Jumps = []uint32{1, 3}
	img.Functions["add"] = 0
	img.Code = []byte{0xAA, 0xBB, 0xCC, 0xDD}

	var buf bytes.Buffer
	if err := Write(&buf, img); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(&buf, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Jumps, img.Jumps) {
		t.Errorf("Jumps mismatch: got %v, want %v", got.Jumps, img.Jumps)
	}
}

func TestDeterministicEncoding(t *testing.T) {
	img := NewImage()
	img.Functions["zebra"] = 10
	img.Functions["alpha"] = 0
	img.Code = []byte{0}

	var a, b bytes.Buffer
	if err := Write(&a, img); err != nil {
		t.Fatal(err)
	}
	if err := Write(&b, img); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("encoding the same image twice produced different bytes")
	}
}

func TestRelocate(t *testing.T) {
	img := NewImage()
	img.Functions["main"] = 5
	img.Code = make([]byte, 8)
	img.Jumps = []uint32{2}
	// Plant a little-endian int32 "10" at byte offset 2.
	img.Code[2], img.Code[3], img.Code[4], img.Code[5] = 10, 0, 0, 0

	Relocate(img, 100)

	if img.Functions["main"] != 105 {
		t.Errorf("Functions[main] = %d, want 105", img.Functions["main"])
	}
	got := int32(img.Code[2]) | int32(img.Code[3])<<8 | int32(img.Code[4])<<16 | int32(img.Code[5])<<24
	if got != 110 {
		t.Errorf("relocated jump target = %d, want 110", got)
	}
}
