package flate

import (
	"bytes"
	"io"
	"testing"
)

// TestStoredBlockShort covers spec.md 8 scenario 1: a short stored
// block, exercising LEN/NLEN and the byte-alignment dataBlock performs
// before reading them.
func TestStoredBlockShort(t *testing.T) {
	var w bitWriter
	writeStoredBlock(&w, true, []byte("Lorem ipsum"))

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if string(got) != "Lorem ipsum" {
		t.Errorf("got %q, want %q", got, "Lorem ipsum")
	}
}

// TestStoredBlockEmpty checks the LEN=0 boundary: a stored block that
// copies zero bytes is valid and contributes nothing to the output.
func TestStoredBlockEmpty(t *testing.T) {
	var w bitWriter
	writeStoredBlock(&w, true, nil)

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %q, want empty", got)
	}
}

// TestStoredBlockMaxLen checks the LEN=65535 boundary, the largest
// value a stored block's 16-bit length field can hold.
func TestStoredBlockMaxLen(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 65535)
	var w bitWriter
	writeStoredBlock(&w, true, data)

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %d bytes, want %d", len(got), len(data))
	}
}

// TestStoredBlockLenNlenMismatch is a corrupt-input case: NLEN must be
// the one's complement of LEN.
func TestStoredBlockLenNlenMismatch(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1) // BFINAL
	w.writeBits(0, 2) // BTYPE=0
	w.alignToByte()
	w.writeBits(5, 16)
	w.writeBits(5, 16) // should be ^5, not 5
	for i := 0; i < 5; i++ {
		w.writeBits(0, 8)
	}

	_, err := Inflate(w.bytes())
	if err == nil {
		t.Fatal("expected an error for a LEN/NLEN mismatch, got nil")
	}
	if !IsCorrupt(err) {
		t.Errorf("expected a CorruptInputError, got %T: %v", err, err)
	}
}

// TestFixedHuffmanPureLiterals covers spec.md 8 scenario 2, including
// the exact bit patterns the spec quotes for 'a', 'b', 'c' and
// end-of-block.
func TestFixedHuffmanPureLiterals(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1) // BFINAL
	w.writeBits(1, 2) // BTYPE=1

	// 10010001, 10010010, 10010011, 0000000 packed MSB-first, matching
	// spec.md's literal quotation.
	w.writeCode(0x91, 8)
	w.writeCode(0x92, 8)
	w.writeCode(0x93, 8)
	w.writeCode(0x00, 7)

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("got %q, want abc", got)
	}
}

// TestFixedHuffmanBackrefOverlap covers spec.md 8 scenario 3: a single
// literal followed by a back-reference whose distance is shorter than
// its length, forcing the overlapping copy path in dictDecoder.
func TestFixedHuffmanBackrefOverlap(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1)
	w.writeBits(1, 2)
	w.writeFixedLiteral('A')
	w.writeFixedBackref(7, 1)
	w.writeFixedEndOfBlock()

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	want := bytes.Repeat([]byte("A"), 8)
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestFixedHuffmanLZSSRepetition covers spec.md 8 scenario 4: several
// adjacent literals and back-references in sequence.
func TestFixedHuffmanLZSSRepetition(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1)
	w.writeBits(1, 2)

	w.writeFixedLiteral('A')
	w.writeFixedLiteral('A') // second A: a match is at least 3 bytes long
	w.writeFixedLiteral('B')
	w.writeFixedBackref(3, 1) // three more Bs
	w.writeFixedLiteral('C')
	w.writeFixedBackref(7, 1) // seven more Cs
	w.writeFixedLiteral('\n')
	w.writeFixedEndOfBlock()

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if string(got) != "AABBBBCCCCCCCC\n" {
		t.Errorf("got %q, want %q", got, "AABBBBCCCCCCCC\n")
	}
}

// TestFixedHuffman144LiteralBoundary exercises the one case in the
// fixed literal/length table that needs a 9-bit code (symbols 144-255).
func TestFixedHuffman144LiteralBoundary(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1)
	w.writeBits(1, 2)
	w.writeFixedLiteral(144)
	w.writeFixedLiteral(255)
	w.writeFixedEndOfBlock()

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	want := []byte{144, 255}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// TestMultiBlockConcatenation checks that BFINAL=0 correctly chains
// into a following block of a different type, and that only the last
// block's BFINAL=1 stops decoding.
func TestMultiBlockConcatenation(t *testing.T) {
	var w bitWriter
	writeStoredBlock(&w, false, []byte("abc"))

	w.writeBits(1, 1) // BFINAL on the second (and last) block
	w.writeBits(1, 2) // BTYPE=1
	w.writeFixedLiteral('d')
	w.writeFixedLiteral('e')
	w.writeFixedEndOfBlock()

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if string(got) != "abcde" {
		t.Errorf("got %q, want abcde", got)
	}
}

// TestBinaryRoundTrip covers spec.md 8 scenario 6 at the flate layer:
// arbitrary binary content, not just text, round-trips through a
// stored block unchanged.
func TestBinaryRoundTrip(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 37)
	}

	var w bitWriter
	// A stored block caps LEN at 65535; split across two blocks to also
	// exercise non-final stored blocks with binary content.
	writeStoredBlock(&w, false, data[:200])
	writeStoredBlock(&w, true, data[200:])

	got, err := Inflate(w.bytes())
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("round-trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
}

// TestWithMaxOutput checks that ErrResourceLimit fires once decoded
// output exceeds the configured cap, rather than growing unbounded.
func TestWithMaxOutput(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, 1000)
	var w bitWriter
	writeStoredBlock(&w, true, data)

	r := NewReader(bytes.NewReader(w.bytes()), WithMaxOutput(100))
	defer r.Close()

	_, err := io.ReadAll(r)
	if err == nil {
		t.Fatal("expected ErrResourceLimit, got nil")
	}
	if err != ErrResourceLimit {
		t.Errorf("got %v, want ErrResourceLimit", err)
	}
}

// TestInvalidBlockType checks BTYPE=3, reserved and always invalid.
func TestInvalidBlockType(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1)
	w.writeBits(3, 2) // BTYPE=3

	_, err := Inflate(w.bytes())
	if err != ErrInvalidBlockType {
		t.Errorf("got %v, want ErrInvalidBlockType", err)
	}
}

// TestUnexpectedEnd checks that a truncated stream is reported as
// ErrUnexpectedEnd rather than silently returning a short result.
func TestUnexpectedEnd(t *testing.T) {
	var w bitWriter
	w.writeBits(1, 1)
	w.writeBits(1, 2) // BTYPE=1, then no literals or end-of-block at all

	_, err := Inflate(w.bytes())
	if err != ErrUnexpectedEnd {
		t.Errorf("got %v, want ErrUnexpectedEnd", err)
	}
}
