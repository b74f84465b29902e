package util

import (
	"bytes"
	"testing"
)

func TestUtf16encode(t *testing.T) {
	encoded := Utf16encode("AB")
	expected := []byte{'A', 0, 'B', 0}
	if !bytes.Equal(encoded, expected) {
		t.Fatalf("Utf16encode: %v != %v", encoded, expected)
	}
	if len(Utf16encode("")) != 0 {
		t.Fatalf("empty string should encode to no bytes")
	}
}

func TestCStringToString(t *testing.T) {
	data := [8]byte{}
	copy(data[:], []byte("2-2"))
	if CStringToString(data[:]) != "2-2" {
		t.Fatalf("CStringToString failed on padded buffer")
	}
}

func TestToLEReadLE(t *testing.T) {
	type pair struct {
		A uint16
		B uint8
	}
	value := pair{A: 0x0110, B: 7}
	encoded := ToLE(value)
	if len(encoded) != 3 || encoded[0] != 0x10 || encoded[1] != 0x01 {
		t.Fatalf("ToLE produced %v", encoded)
	}
	decoded := ReadLE[pair](bytes.NewBuffer(encoded))
	if decoded != value {
		t.Fatalf("ReadLE: %v != %v", decoded, value)
	}
}

func TestSizeOf(t *testing.T) {
	type header struct {
		A uint8
		B uint8
		C uint16
	}
	if SizeOf[header]() != 4 {
		t.Fatalf("SizeOf[header] != 4")
	}
}

func TestTryCatchesPanics(t *testing.T) {
	caught := false
	Try(func() {
		Panic("expected failure")
	}, func(val interface{}) {
		caught = true
	})
	if !caught {
		t.Fatalf("Try did not catch the panic")
	}
}
