package flate

import "math/bits"

// PrefixTree: a canonical code realized as a table-driven decoding
// structure (spec.md 4.3 offers a trie-of-nodes or table-driven
// realization; the table-driven one is used here, a design zlib's
// algorithm.txt attributes to the chunks/links technique below).
// chunk & 15 is the number of bits the entry consumes; chunk >> 4 is
// the decoded symbol (or, for an overflow entry, an index into
// links).
const (
	chunkBits  = 9
	numChunks  = 1 << chunkBits
	countMask  = 15
	valueShift = 4
)

type prefixTree struct {
	min    int // minimum code length in this tree; 0 for an empty tree
	chunks [numChunks]uint32
	links  [][]uint32
	linkMask uint32
}

// newPrefixTree builds the decoding table from the canonical codes
// CanonicalCodeBuilder produced. lengths and codes must have the same
// length (lengths[s] == 0 means symbol s is absent).
//
// Every path from the root to a leaf has length equal to the symbol's
// code length, and the concatenated bits along that path equal the
// canonical code MSB-first (spec.md 3, PrefixTree invariant) — which
// is why the codes here are bit-reversed before being deposited into
// the chunk table: walking the table by peeling off LOW bits of the
// LSB-first bit accumulator is equivalent to an MSB-first walk of the
// original code once the code's bits are reversed up front.
func newPrefixTree(lengths []int, codes []canonicalCode) (*prefixTree, error) {
	t := &prefixTree{}

	minLen, maxLen := 0, 0
	for _, c := range codes {
		if c.length == 0 {
			continue
		}
		if minLen == 0 || c.length < minLen {
			minLen = c.length
		}
		if c.length > maxLen {
			maxLen = c.length
		}
	}
	if maxLen == 0 {
		return t, nil // empty tree; decode() will fail if ever used.
	}
	t.min = minLen

	if maxLen > chunkBits {
		numLinks := 1 << uint(maxLen-chunkBits)
		t.linkMask = uint32(numLinks - 1)

		// Any code longer than chunkBits is routed through an overflow
		// link table, one per distinct chunkBits-wide prefix it can
		// take, computed here by scanning the assigned codes rather
		// than deriving it from a next_code accumulator.
		seen := map[uint32]bool{}
		for _, c := range codes {
			if c.length <= chunkBits {
				continue
			}
			reverse := uint32(bits.Reverse16(uint16(c.code))) >> uint(16-c.length)
			prefix := reverse & (numChunks - 1)
			if !seen[prefix] {
				seen[prefix] = true
				t.links = append(t.links, make([]uint32, numLinks))
				off := uint32(len(t.links) - 1)
				t.chunks[prefix] = off<<valueShift | uint32(chunkBits+1)
			}
		}
	}

	for sym, c := range codes {
		if c.length == 0 {
			continue
		}
		chunk := uint32(sym<<valueShift | c.length)
		reverse := uint32(bits.Reverse16(uint16(c.code))) >> uint(16-c.length)

		if c.length <= chunkBits {
			for off := reverse; int(off) < len(t.chunks); off += 1 << uint(c.length) {
				t.chunks[off] = chunk
			}
			continue
		}

		prefix := reverse & (numChunks - 1)
		linkIdx := t.chunks[prefix] >> valueShift
		linktab := t.links[linkIdx]
		rest := reverse >> chunkBits
		for off := rest; int(off) < len(linktab); off += 1 << uint(c.length-chunkBits) {
			linktab[off] = chunk
		}
	}

	return t, nil
}

// decode reads the next symbol by walking the table one lookahead at a
// time, consuming exactly as many bits as the matched code requires.
func (t *prefixTree) decode(br *bitReader) (int, error) {
	if t.min == 0 {
		return 0, corrupt(0, "decode with empty prefix tree")
	}

	n := uint(t.min)
	for {
		if err := br.fill(n); err != nil {
			return 0, err
		}
		chunk := t.chunks[br.b&(numChunks-1)]
		n = uint(chunk & countMask)
		if n > chunkBits {
			chunk = t.links[chunk>>valueShift][(br.b>>chunkBits)&t.linkMask]
			n = uint(chunk & countMask)
		}
		if n <= br.nb {
			if n == 0 {
				return 0, corrupt(0, "invalid Huffman code")
			}
			br.b >>= n
			br.nb -= n
			return int(chunk >> valueShift), nil
		}
	}
}
