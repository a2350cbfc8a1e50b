package flate

import "io"

// Checkpoint captures enough Decompressor state to resume decoding
// mid-stream without starting over from byte 0: the compressed/
// uncompressed byte offsets, the partially-consumed bit accumulator,
// and a full snapshot of the sliding-window history (without which a
// resumed back-reference would have nothing to copy from).
//
// This is the supplemented seekable-decode feature: spec.md's
// Decompressor has no notion of mid-stream resumption, but gzip/index.go
// builds a sparse index of Checkpoints so a RandomAccessReader can
// start decoding from the nearest one instead of the front of the file.
type Checkpoint struct {
	In  int64 `json:"in,omitempty"`
	Out int64 `json:"out,omitempty"`

	B  uint32 `json:"b,omitempty"`
	NB uint   `json:"nb,omitempty"`

	Hist  []byte `json:"hist,omitempty"`
	WrPos int    `json:"wrpos,omitempty"`
	RdPos int    `json:"rdpos,omitempty"`
	Full  bool   `json:"full,omitempty"`
}

// BytesRead is the compressed offset the checkpoint resumes reading
// from.
func (c *Checkpoint) BytesRead() int64 { return c.In }

// BytesWritten is the uncompressed offset the checkpoint resumes
// writing at.
func (c *Checkpoint) BytesWritten() int64 { return c.Out }

// NewReaderWithSpans is like NewReader but emits a Checkpoint on
// updates roughly every span bytes of uncompressed output, starting
// the compressed-byte counter at start (used when r has already been
// advanced past start bytes by the caller).
func NewReaderWithSpans(r io.Reader, span int64, start int64, updates chan<- *Checkpoint, opts ...Option) *Decompressor {
	f := &Decompressor{br: newBitReader(r), step: (*Decompressor).nextBlock}
	f.dict.init(maxMatchOffset, nil)
	f.br.consumed = start
	f.roffset = start
	f.span = span
	f.updates = updates
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Continue resumes decoding from a Checkpoint taken by a prior
// Decompressor against a reader r already positioned at from.In.
func Continue(r io.Reader, from *Checkpoint, span int64, updates chan<- *Checkpoint, opts ...Option) *Decompressor {
	f := &Decompressor{br: newBitReader(r), step: (*Decompressor).nextBlock}

	f.dict.hist = make([]byte, maxMatchOffset)
	copy(f.dict.hist, from.Hist)
	f.dict.wrPos = from.WrPos
	f.dict.rdPos = from.RdPos
	f.dict.full = from.Full

	f.br.b = from.B
	f.br.nb = from.NB
	f.br.consumed = from.In
	f.roffset = from.In
	f.woffset = from.Out
	f.last = from.Out
	f.span = span
	f.updates = updates

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// maybeCheckpoint sends a Checkpoint on f.updates if one is configured
// and at least f.span uncompressed bytes have been produced since the
// last one. woffset is the uncompressed offset as of the just-finished
// block, including any bytes about to be handed to the caller via
// f.toRead.
func (f *Decompressor) maybeCheckpoint(woffset int64) {
	if f.updates == nil || woffset-f.last < f.span {
		return
	}
	cp := &Checkpoint{
		In:    f.roffset,
		Out:   woffset,
		B:     f.br.b,
		NB:    f.br.nb,
		Hist:  make([]byte, len(f.dict.hist)),
		WrPos: f.dict.wrPos,
		RdPos: f.dict.rdPos,
		Full:  f.dict.full,
	}
	copy(cp.Hist, f.dict.hist)
	f.updates <- cp
	f.last = woffset
}
