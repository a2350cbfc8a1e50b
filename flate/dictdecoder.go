package flate

// dictDecoder is the output buffer: spec.md 3 "Output buffer", a
// growing byte sequence that back-references read from and append to.
// It is implemented as a fixed-size ring of the maximum match distance
// (32768 bytes, maxMatchOffset) so that a back-reference never needs to
// address more history than DEFLATE can express, flushed to the caller
// in chunks as it fills.
//
// Not present in the retrieved teacher slice — inflate.go calls a
// dictDecoder type it never defines in this pack (see DESIGN.md) — so
// this file is reconstructed from its call sites there, keeping the
// same method names so the ported BlockDecoder needed no further
// adaptation at those call sites.
//
// Critical invariant carried from spec.md 3: writeCopy is byte-by-byte
// with overlap permitted — if dist < length, bytes just written in the
// same copy are legitimately read again later in the same copy. That
// is what lets "AAAA..." and "ABABAB..." be encoded as a short
// (length, distance) pair.
type dictDecoder struct {
	hist  []byte
	wrPos int
	rdPos int
	full  bool
}

// init resets d to decode against a window of the given size,
// optionally preloaded with a preset dictionary (NewReaderDict).
func (d *dictDecoder) init(size int, dict []byte) {
	*d = dictDecoder{hist: d.hist}
	if cap(d.hist) < size {
		d.hist = make([]byte, size)
	}
	d.hist = d.hist[:size]

	if len(dict) > len(d.hist) {
		dict = dict[len(dict)-len(d.hist):]
	}
	d.wrPos = copy(d.hist, dict)
	if d.wrPos == len(d.hist) {
		d.wrPos = 0
		d.full = true
	}
	d.rdPos = d.wrPos
}

// histSize reports how many bytes of valid history are available for
// a back-reference to read from right now.
func (d *dictDecoder) histSize() int {
	if d.full {
		return len(d.hist)
	}
	return d.wrPos
}

// availRead reports how many decoded-but-unflushed bytes are pending.
func (d *dictDecoder) availRead() int {
	return d.wrPos - d.rdPos
}

// availWrite reports how much room remains before the window must be
// flushed to the caller.
func (d *dictDecoder) availWrite() int {
	return len(d.hist) - d.wrPos
}

// writeSlice returns the unwritten tail of the window, for bulk writes
// (stored blocks read directly into it).
func (d *dictDecoder) writeSlice() []byte {
	return d.hist[d.wrPos:]
}

// writeMark records that cnt bytes were written directly into the
// slice returned by writeSlice.
func (d *dictDecoder) writeMark(cnt int) {
	d.wrPos += cnt
}

// writeByte appends a single literal byte.
func (d *dictDecoder) writeByte(c byte) {
	d.hist[d.wrPos] = c
	d.wrPos++
}

// writeCopy performs a back-reference copy of length bytes from dist
// bytes before the current write position, byte-by-byte so that an
// overlapping copy (dist < length) expands a repeating run correctly.
// It copies up to the end of the current window and returns the
// number of bytes actually copied; any remainder is the caller's cue
// to flush and resume.
func (d *dictDecoder) writeCopy(dist, length int) int {
	dstBase := d.wrPos
	dstPos := dstBase
	endPos := dstPos + length
	if endPos > len(d.hist) {
		endPos = len(d.hist)
	}
	srcPos := dstPos - dist

	if srcPos < 0 {
		srcPos += len(d.hist)
		dstPos += copy(d.hist[dstPos:endPos], d.hist[srcPos:])
		srcPos = 0
	}
	for dstPos < endPos {
		dstPos += copy(d.hist[dstPos:endPos], d.hist[srcPos:dstPos])
	}

	d.wrPos = dstPos
	return dstPos - dstBase
}

// tryWriteCopy is the fast path for writeCopy: it succeeds in one shot
// only when the whole copy fits within the window without wrapping
// around the ring or reading before byte 0 of history, which is the
// common case once the window is full.
func (d *dictDecoder) tryWriteCopy(dist, length int) int {
	dstPos := d.wrPos
	endPos := dstPos + length
	if dstPos < dist || endPos > len(d.hist) {
		return 0
	}
	dstBase := dstPos
	srcPos := dstPos - dist

	for dstPos < endPos {
		dstPos += copy(d.hist[dstPos:endPos], d.hist[srcPos:dstPos])
	}

	d.wrPos = dstPos
	return dstPos - dstBase
}

// readFlush returns all decoded bytes not yet handed to the caller and
// marks them read, wrapping the ring if it just filled exactly.
func (d *dictDecoder) readFlush() []byte {
	toRead := d.hist[d.rdPos:d.wrPos]
	d.rdPos = d.wrPos
	if d.wrPos == len(d.hist) {
		d.wrPos, d.rdPos, d.full = 0, 0, true
	}
	return toRead
}
