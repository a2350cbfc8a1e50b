package flate

import (
	"bytes"
	"testing"
)

func TestDictDecoderOverlappingCopy(t *testing.T) {
	var d dictDecoder
	d.init(32, nil)

	d.writeByte('A')
	n := d.writeCopy(1, 7) // dist < length: must replicate the run byte by byte.
	if n != 7 {
		t.Fatalf("writeCopy returned %d, want 7", n)
	}

	got := d.readFlush()
	want := bytes.Repeat([]byte("A"), 8)
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDictDecoderABABPattern(t *testing.T) {
	var d dictDecoder
	d.init(32, nil)

	d.writeByte('A')
	d.writeByte('B')
	n := d.writeCopy(2, 6)
	if n != 6 {
		t.Fatalf("writeCopy returned %d, want 6", n)
	}

	got := d.readFlush()
	if string(got) != "ABABABAB" {
		t.Errorf("got %q, want ABABABAB", got)
	}
}

func TestDictDecoderPresetDictionary(t *testing.T) {
	var d dictDecoder
	d.init(8, []byte("abcdefgh"))

	if got, want := d.histSize(), 8; got != want {
		t.Fatalf("histSize after a full preset dictionary: got %d, want %d", got, want)
	}

	n := d.writeCopy(3, 3) // copies "fgh" from the tail of the preset dictionary
	if n != 3 {
		t.Fatalf("writeCopy returned %d, want 3", n)
	}
	got := d.readFlush()
	if string(got) != "fgh" {
		t.Errorf("got %q, want fgh", got)
	}
}

func TestDictDecoderWindowWrap(t *testing.T) {
	var d dictDecoder
	d.init(4, nil)

	d.writeByte('a')
	d.writeByte('b')
	d.writeByte('c')
	d.writeByte('d')
	if d.availWrite() != 0 {
		t.Fatalf("expected the window to be full, availWrite=%d", d.availWrite())
	}
	flushed := d.readFlush()
	if string(flushed) != "abcd" {
		t.Fatalf("got %q, want abcd", flushed)
	}
	if !d.full {
		t.Fatalf("expected full=true once the ring has wrapped once")
	}

	d.writeByte('e')
	if got := d.histSize(); got != 4 {
		t.Fatalf("histSize once the ring is full should stay at the window size: got %d", got)
	}
}

func TestDictDecoderTryWriteCopyFastPath(t *testing.T) {
	var d dictDecoder
	d.init(32, nil)
	for _, b := range []byte("xyz") {
		d.writeByte(b)
	}
	n := d.tryWriteCopy(3, 3)
	if n != 3 {
		t.Fatalf("tryWriteCopy returned %d, want 3", n)
	}
	got := d.readFlush()
	if string(got) != "xyzxyz" {
		t.Errorf("got %q, want xyzxyz", got)
	}
}

func TestDictDecoderTryWriteCopyRejectsWrap(t *testing.T) {
	var d dictDecoder
	d.init(4, nil)
	d.writeByte('a')
	d.writeByte('b')
	d.writeByte('c')
	// A copy reaching past the end of the window must fall back to the
	// byte-by-byte path (writeCopy), not tryWriteCopy's fast path.
	if n := d.tryWriteCopy(2, 3); n != 0 {
		t.Fatalf("tryWriteCopy should refuse a copy overrunning the window, got n=%d", n)
	}
}
