// Package flate implements a read-only decoder for the DEFLATE
// compressed data format described in RFC 1951. It has no encoder: see
// spec.md's Non-goals. The gzip package built on top of it supplies the
// container (magic bytes, header fields, CRC32/ISIZE footer).
package flate

import (
	"bytes"
	"io"
)

const (
	maxMatchOffset = 1 << 15 // largest back-reference distance (32768).
	maxStoreBlock  = 1 << 16 // largest stored-block LEN (65535) plus headroom.
)

// BlockDecoder: the per-block state machine of spec.md 4.4. Decompressor
// drives nextBlock -> {dataBlock | huffmanBlock} -> finishBlock,
// appending to a dictDecoder output window and returning completed
// chunks through Read, rewired onto bitReader/prefixTree instead of
// inline accumulator fields.
type Decompressor struct {
	br *bitReader

	// Huffman decoders currently in effect for this block: hl for
	// literal/length, hd for distance. hd == nil means "fixed block,
	// use the 5-bit MSB-first fixed distance code" (spec.md 4.4,
	// "Fixed").
	hl, hd *prefixTree

	dict dictDecoder

	step      func(*Decompressor)
	stepState int
	final     bool
	err       error
	toRead    []byte
	copyLen   int
	copyDist  int

	roffset int64 // compressed bytes pulled from the source, incl. bits still buffered in br; diagnostic + checkpoint use
	woffset int64 // uncompressed bytes produced so far

	// Scratch buffers reused across dynamic-block headers (dynamic.go)
	// to avoid reallocating on every block.
	codeLengthBits [codeLengthAlphabetSize]int
	bits           [maxNumLit + maxNumDist]int

	maxOutput int64 // 0 = unbounded; else ErrResourceLimit once woffset exceeds it

	// Checkpointing (flate/checkpoint.go): emit a Checkpoint every span
	// bytes of output so a caller can resume mid-stream without
	// re-decoding from byte 0. Zero value (updates == nil) disables it.
	span    int64
	last    int64
	updates chan<- *Checkpoint
}

// Option configures a Decompressor at construction time.
type Option func(*Decompressor)

// WithMaxOutput caps the uncompressed size the Decompressor will
// produce before it fails with ErrResourceLimit (spec.md 5, "A
// defensive implementation MAY cap maximum uncompressed length").
func WithMaxOutput(n int64) Option {
	return func(f *Decompressor) { f.maxOutput = n }
}

var fixedLitLenTree, fixedDistTree *prefixTree

func init() {
	// Built once: RFC 1951 3.2.6's fixed tables never change.
	litLenCodes, err := buildCanonicalCodes(fixedLitLenLengths(), maxLitDistCodeLen)
	if err != nil {
		panic(InternalError("fixed literal/length code failed to build: " + err.Error()))
	}
	fixedLitLenTree, err = newPrefixTree(fixedLitLenLengths(), litLenCodes)
	if err != nil {
		panic(InternalError("fixed literal/length tree failed to build: " + err.Error()))
	}
	distCodes, err := buildCanonicalCodes(fixedDistLengths(), maxLitDistCodeLen)
	if err != nil {
		panic(InternalError("fixed distance code failed to build: " + err.Error()))
	}
	fixedDistTree, err = newPrefixTree(fixedDistLengths(), distCodes)
	if err != nil {
		panic(InternalError("fixed distance tree failed to build: " + err.Error()))
	}
}

// NewReader returns an io.ReadCloser that inflates the DEFLATE stream
// read from r. The reader returns io.EOF once the final block
// (BFINAL=1) has been consumed; any trailing bytes are ignored, which
// is how a gzip container's footer is left for the caller to parse.
func NewReader(r io.Reader, opts ...Option) io.ReadCloser {
	f := &Decompressor{br: newBitReader(r), step: (*Decompressor).nextBlock}
	f.dict.init(maxMatchOffset, nil)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewReaderDict is like NewReader but primes the output window with a
// preset dictionary, as if the uncompressed stream had started with
// it already written (used to read data produced with a matching
// preset-dictionary encoder).
func NewReaderDict(r io.Reader, dict []byte, opts ...Option) io.ReadCloser {
	f := &Decompressor{br: newBitReader(r), step: (*Decompressor).nextBlock}
	f.dict.init(maxMatchOffset, dict)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Inflate decodes a single complete DEFLATE stream (terminated by a
// block with BFINAL=1) and returns the whole uncompressed byte
// sequence. This is the "inflate(payload) -> (bytes, error)" entry
// point of spec.md 6: unlike the streaming Decompressor it consumes
// and produces complete buffers, with no partial-input/partial-output
// mode.
func Inflate(payload []byte, opts ...Option) ([]byte, error) {
	r := NewReader(bytes.NewReader(payload), opts...)
	defer r.Close()

	var out bytes.Buffer
	_, err := out.ReadFrom(r)
	if err != nil {
		return out.Bytes(), err
	}
	return out.Bytes(), nil
}

func (f *Decompressor) Read(b []byte) (int, error) {
	for {
		if len(f.toRead) > 0 {
			n := copy(b, f.toRead)
			f.toRead = f.toRead[n:]
			if len(f.toRead) == 0 {
				return n, f.err
			}
			return n, nil
		}
		if f.err != nil {
			return 0, f.err
		}
		f.step(f)
		f.woffset += int64(len(f.toRead))
		if f.maxOutput > 0 && f.woffset > f.maxOutput {
			f.err = ErrResourceLimit
			f.toRead = nil
			return 0, f.err
		}
		if f.err != nil && len(f.toRead) == 0 {
			f.toRead = f.dict.readFlush()
			f.woffset += int64(len(f.toRead))
		}
	}
}

func (f *Decompressor) Close() error {
	if f.err == io.EOF {
		return nil
	}
	return f.err
}

// Reset discards any buffered state and resumes reading from r, as if
// newly constructed, keeping any configured Option values (e.g.
// maxOutput). Satisfies the same Resetter shape compress/flate uses.
func (f *Decompressor) Reset(r io.Reader, dict []byte) error {
	maxOutput := f.maxOutput
	span, updates := f.span, f.updates
	*f = Decompressor{
		br:        newBitReader(r),
		step:      (*Decompressor).nextBlock,
		maxOutput: maxOutput,
		span:      span,
		updates:   updates,
	}
	f.dict.init(maxMatchOffset, dict)
	return nil
}

func (f *Decompressor) nextBlock() {
	bfinal, err := f.br.readBits(1)
	if err != nil {
		f.err = err
		return
	}
	btype, err := f.br.readBits(2)
	if err != nil {
		f.err = err
		return
	}
	f.final = bfinal == 1

	switch btype {
	case 0:
		f.dataBlock()
	case 1:
		f.hl = fixedLitLenTree
		f.hd = nil
		f.huffmanBlock()
	case 2:
		if err := f.readHuffman(); err != nil {
			f.err = err
			return
		}
		f.huffmanBlock()
	default:
		f.err = ErrInvalidBlockType
	}
}

// dataBlock handles BTYPE=0: byte-align, read LEN/NLEN, copy LEN raw
// bytes (spec.md 4.4, "Stored").
func (f *Decompressor) dataBlock() {
	f.br.alignToByte()

	var buf [4]byte
	if err := f.br.readBytes(buf[:]); err != nil {
		f.err = err
		return
	}
	n := int(buf[0]) | int(buf[1])<<8
	nn := int(buf[2]) | int(buf[3])<<8
	if uint16(nn) != uint16(^uint16(n)) {
		f.err = corrupt(f.br.consumed, "stored block LEN/NLEN mismatch")
		return
	}

	if n == 0 {
		f.toRead = f.dict.readFlush()
		f.finishBlock()
		return
	}

	f.copyLen = n
	f.copyData()
}

func (f *Decompressor) copyData() {
	buf := f.dict.writeSlice()
	if len(buf) > f.copyLen {
		buf = buf[:f.copyLen]
	}

	if err := f.br.readBytes(buf); err != nil {
		f.err = err
		return
	}
	f.copyLen -= len(buf)
	f.dict.writeMark(len(buf))

	if f.dict.availWrite() == 0 || f.copyLen > 0 {
		f.toRead = f.dict.readFlush()
		f.step = (*Decompressor).copyData
		return
	}
	f.finishBlock()
}

// huffmanBlock runs the literal/length decoding loop of spec.md 4.4
// ("Literal/length loop") for both fixed and dynamic blocks, using
// whichever trees nextBlock/readHuffman set as f.hl/f.hd.
func (f *Decompressor) huffmanBlock() {
	const (
		stateInit = iota
		stateCopy
	)

	switch f.stepState {
	case stateInit:
		goto readLiteral
	case stateCopy:
		goto copyHistory
	}

readLiteral:
	{
		sym, err := f.br.readSymbol(f.hl)
		if err != nil {
			f.err = err
			return
		}
		switch {
		case sym < 256:
			f.dict.writeByte(byte(sym))
			if f.dict.availWrite() == 0 {
				f.toRead = f.dict.readFlush()
				f.step = (*Decompressor).huffmanBlock
				f.stepState = stateInit
				return
			}
			goto readLiteral
		case sym == endOfBlock:
			f.finishBlock()
			return
		case sym > 285:
			f.err = corrupt(f.br.consumed, "length symbol out of range")
			return
		}

		length := lengthBase[sym-lengthCodeBase]
		if nb := lengthExtraBits[sym-lengthCodeBase]; nb > 0 {
			extra, err := f.br.readBits(nb)
			if err != nil {
				f.err = err
				return
			}
			length += int(extra)
		}

		var distSym int
		if f.hd == nil {
			distSym, err = f.readFixedDistanceSymbol()
		} else {
			distSym, err = f.br.readSymbol(f.hd)
		}
		if err != nil {
			f.err = err
			return
		}
		if distSym >= distanceCodeCount {
			f.err = corrupt(f.br.consumed, "distance symbol out of range")
			return
		}

		dist := distanceBase[distSym]
		if nb := distanceExtraBits[distSym]; nb > 0 {
			extra, err := f.br.readBits(nb)
			if err != nil {
				f.err = err
				return
			}
			dist += int(extra)
		}

		if dist == 0 || dist > f.dict.histSize() {
			f.err = corrupt(f.br.consumed, "back-reference before start of output")
			return
		}

		f.copyLen, f.copyDist = length, dist
		goto copyHistory
	}

copyHistory:
	{
		cnt := f.dict.tryWriteCopy(f.copyDist, f.copyLen)
		if cnt == 0 {
			cnt = f.dict.writeCopy(f.copyDist, f.copyLen)
		}
		f.copyLen -= cnt

		if f.dict.availWrite() == 0 || f.copyLen > 0 {
			f.toRead = f.dict.readFlush()
			f.step = (*Decompressor).huffmanBlock
			f.stepState = stateCopy
			return
		}
		goto readLiteral
	}
}

func (f *Decompressor) finishBlock() {
	// Every block's output is flushed at its end, so woffset (and any
	// checkpoint taken here) sits exactly on the block boundary.
	woffset := f.woffset + int64(len(f.toRead))
	if f.dict.availRead() > 0 {
		extra := f.dict.readFlush()
		f.toRead = append(f.toRead, extra...)
		woffset += int64(len(extra))
	}
	f.roffset = f.br.consumed
	if f.final {
		f.err = io.EOF
	} else {
		f.maybeCheckpoint(woffset)
	}
	f.step = (*Decompressor).nextBlock
	f.stepState = 0
}

// readFixedDistanceSymbol reads a fixed-block distance code: always 5
// bits, sent most-significant-bit-first like every Huffman code in the
// format (RFC 1951 3.2.6), unlike the integer fields, which are sent
// least-significant-bit-first. bitReader's accumulator is LSB-first
// throughout, so the 5 raw bits read via readBits are reversed here to
// recover the intended value. Fixed blocks leave hd nil and do not walk
// a prefixTree for this code (fixedDistTree is built in init but not
// consulted here), so the reversal that newPrefixTree applies to its
// table is done explicitly instead.
func (f *Decompressor) readFixedDistanceSymbol() (int, error) {
	v, err := f.br.readBits(5)
	if err != nil {
		return 0, err
	}
	return int(reverse5(uint8(v))), nil
}

func reverse5(b uint8) uint8 {
	var r uint8
	for i := 0; i < 5; i++ {
		r = r<<1 | (b & 1)
		b >>= 1
	}
	return r
}
