package flate

import "io"

// bitReader consumes a DEFLATE payload as a stream of bits, in the bit
// order mandated by RFC 1951 3.1.1: within a byte, bits are read from
// the least significant bit toward the most significant.
//
// It has exactly one accumulator (b, nb) but two distinct consumer
// disciplines, matching spec.md 4.1 and the "Bit order pitfall" design
// note: readBits treats the accumulator as a little-endian integer (the
// first bit read becomes bit 0 of the result); readSymbol instead looks
// the low bits of the accumulator up in a prefixTree's table, which is
// equivalent to walking the code most-significant-bit-first because
// that is the order the encoder emitted it in and the table was built
// from bit-reversed codes accordingly (see prefix.go). Neither
// discipline reverses any bits at read time; both drain the same
// LSB-first accumulator.
//
// Split into its own type, separate from Decompressor, to match
// spec.md's BitReader component boundary.
type bitReader struct {
	r  io.ByteReader
	b  uint32 // bit accumulator, low bits valid
	nb uint   // number of valid bits in b

	// src is the underlying io.Reader, which readBytes reads from in
	// bulk once byte-aligned.
	src io.Reader

	consumed int64 // whole bytes pulled from src so far; diagnostic + checkpoint use
}

func newBitReader(r io.Reader) *bitReader {
	br := &bitReader{src: r}
	if rb, ok := r.(io.ByteReader); ok {
		br.r = rb
	} else {
		br.r = &byteReaderAdapter{r: r}
	}
	return br
}

// byteReaderAdapter lets bitReader work with a plain io.Reader.
type byteReaderAdapter struct {
	r   io.Reader
	buf [1]byte
}

func (a *byteReaderAdapter) ReadByte() (byte, error) {
	_, err := io.ReadFull(a.r, a.buf[:])
	return a.buf[0], err
}

func noEOF(err error) error {
	if err == io.EOF {
		return ErrUnexpectedEnd
	}
	return err
}

// fill ensures at least n valid bits are buffered, reading whole bytes
// from the underlying source as needed.
func (br *bitReader) fill(n uint) error {
	for br.nb < n {
		c, err := br.r.ReadByte()
		if err != nil {
			return noEOF(err)
		}
		br.b |= uint32(c) << br.nb
		br.nb += 8
		br.consumed++
	}
	return nil
}

// readBits reads n (1 <= n <= 16) bits as an unsigned integer. The
// first bit read is bit 0 of the result (spec.md 3: "the first bit
// read as the least significant bit of the result").
func (br *bitReader) readBits(n uint) (uint32, error) {
	if err := br.fill(n); err != nil {
		return 0, err
	}
	v := br.b & (1<<n - 1)
	br.b >>= n
	br.nb -= n
	return v, nil
}

// readSymbol reads a single Huffman-coded symbol using tree's lookup
// table, consuming exactly the matched code's bits. It must not go
// through readBits: see the bitReader type comment on bit order.
func (br *bitReader) readSymbol(tree *prefixTree) (int, error) {
	return tree.decode(br)
}

// alignToByte discards the remaining bits of the partially-consumed
// byte, used only by stored blocks (spec.md 4.4, "Stored").
func (br *bitReader) alignToByte() {
	br.b = 0
	br.nb = 0
}

// readBytes reads n raw bytes. The reader must already be
// byte-aligned (callers always call alignToByte first for stored
// blocks).
func (br *bitReader) readBytes(buf []byte) error {
	n, err := io.ReadFull(br.src, buf)
	br.consumed += int64(n)
	if err == io.ErrUnexpectedEOF {
		return ErrUnexpectedEnd
	}
	if err != nil {
		return noEOF(err)
	}
	return nil
}
