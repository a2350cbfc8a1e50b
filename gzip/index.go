package gzip

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/inflatekit/goflate/flate"
)

// Index is the serializable metadata RandomAccessReader needs to skip
// around a single-member gzip stream without re-decoding it from byte
// zero every time: the byte length of the gzip header (so
// flate.Checkpoint offsets, which are relative to the DEFLATE payload,
// can be translated back to file offsets) and a sparse run of
// checkpoints taken roughly every span uncompressed bytes, exposed as a
// first-class feature of this package (spec.md §9 and SPEC_FULL.md §3,
// "Seekable random access").
type Index struct {
	HeaderLen   int64
	Size        int64
	Checkpoints []*flate.Checkpoint
}

// Encode serializes the index as JSON.
func (idx *Index) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(idx)
}

// DecodeIndex reads back an Index written by Encode.
func DecodeIndex(r io.Reader) (*Index, error) {
	idx := &Index{}
	if err := json.NewDecoder(r).Decode(idx); err != nil {
		return nil, fmt.Errorf("%w: decoding index: %w", errGzip, err)
	}
	return idx, nil
}

// countingReader tracks how many bytes have been pulled through it.
// Used (without any buffering layer in front of it) to measure the
// exact byte length of the gzip header, something a bufio.Reader's
// read-ahead would obscure.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// BuildIndex decompresses a gzip member once, end to end, recording a
// flate.Checkpoint every span bytes of uncompressed output (the
// span/last/updates fields driving NewReaderWithSpans in
// flate/checkpoint.go). ra/size describe the whole gzip member as an
// io.ReaderAt.
func BuildIndex(ra io.ReaderAt, size int64, span int64) (*Index, error) {
	cr := &countingReader{r: io.NewSectionReader(ra, 0, size)}
	probe := &Reader{r: bufio.NewReaderSize(cr, 1), multistream: false}
	if err := probe.readHeader(); err != nil {
		return nil, err
	}
	headerLen := cr.n - int64(probe.r.Buffered())

	updates := make(chan *flate.Checkpoint, 16)
	var checkpoints []*flate.Checkpoint
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for cp := range updates {
			checkpoints = append(checkpoints, cp)
		}
	}()

	payload := io.NewSectionReader(ra, headerLen, size-headerLen)
	zr := flate.NewReaderWithSpans(payload, span, 0, updates)
	n, err := io.Copy(io.Discard, zr)
	close(updates)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	return &Index{
		HeaderLen:   headerLen,
		Size:        n,
		Checkpoints: checkpoints,
	}, nil
}

// RandomAccessReader implements io.ReaderAt over a gzip member plus an
// Index built for it, resuming decompression from the nearest
// checkpoint at or before the requested offset instead of always
// restarting at the front of the file.
type RandomAccessReader struct {
	ra   io.ReaderAt
	size int64
	idx  *Index
	opts []flate.Option

	mu    sync.Mutex
	cache map[uint64]*flate.Checkpoint
}

// NewRandomAccessReader pairs a gzip member (ra, size) with a
// previously built Index.
func NewRandomAccessReader(ra io.ReaderAt, size int64, idx *Index, opts ...flate.Option) *RandomAccessReader {
	return &RandomAccessReader{
		ra:    ra,
		size:  size,
		idx:   idx,
		opts:  opts,
		cache: make(map[uint64]*flate.Checkpoint),
	}
}

// bucketKey hashes the checkpoint-bucket an offset falls into (repeat
// reads in the same bucket reuse the checkpoint the first one found and
// skip the linear scan below, unless that checkpoint lies past the new
// offset; buckets are one first-checkpoint span wide, so a bucket can
// hold more than one checkpoint). Grounded on
// elliotnunn/BeHierarchic's use of xxhash for archive block/content
// cache keys — the same shape of problem (index small spans of a large
// archive for repeated random access) recurs here.
func (r *RandomAccessReader) bucketKey(off int64) uint64 {
	span := int64(1)
	if len(r.idx.Checkpoints) > 0 {
		span = r.idx.Checkpoints[0].Out
		if span <= 0 {
			span = 1
		}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(off/span))
	return xxhash.Sum64(buf[:])
}

func (r *RandomAccessReader) nearestCheckpoint(off int64) *flate.Checkpoint {
	key := r.bucketKey(off)

	r.mu.Lock()
	if cp, ok := r.cache[key]; ok && (cp == nil || cp.Out <= off) {
		r.mu.Unlock()
		return cp
	}
	r.mu.Unlock()

	var nearest *flate.Checkpoint
	for _, cp := range r.idx.Checkpoints {
		if cp.Out > off {
			break
		}
		nearest = cp
	}

	r.mu.Lock()
	r.cache[key] = nearest
	r.mu.Unlock()
	return nearest
}

// ReadAt implements io.ReaderAt, decompressing from the nearest
// checkpoint at or before off and discarding forward to the exact
// byte.
func (r *RandomAccessReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= r.idx.Size {
		return 0, io.EOF
	}

	cp := r.nearestCheckpoint(off)

	var zr io.Reader
	var discard int64
	if cp == nil {
		payload := io.NewSectionReader(r.ra, r.idx.HeaderLen, r.size-r.idx.HeaderLen)
		zr = flate.NewReader(payload, r.opts...)
		discard = off
	} else {
		payload := io.NewSectionReader(r.ra, r.idx.HeaderLen+cp.In, r.size-r.idx.HeaderLen-cp.In)
		zr = flate.Continue(payload, cp, 0, nil, r.opts...)
		discard = off - cp.Out
	}

	if discard > 0 {
		if _, err := io.CopyN(io.Discard, zr, discard); err != nil {
			return 0, fmt.Errorf("%w: seeking to offset %d: %w", errGzip, off, err)
		}
	}
	return io.ReadFull(zr, p)
}
