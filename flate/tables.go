package flate

// Constant tables from RFC 1951's length/distance code arithmetic,
// restated as explicit tables here rather than inline case arithmetic,
// since CanonicalCodeBuilder and PrefixTree are now separate
// components that both need to reference them by symbol index.

const (
	// The number of distance codes (0-29).
	distanceCodeCount = 30

	// The special code marking the end of a block.
	endOfBlock = 256

	// The first length code; codes 257..285 encode match lengths.
	lengthCodeBase = 257

	// Number of symbols in the code-length (code generation) alphabet.
	codeLengthAlphabetSize = 19

	maxCodeLen = 16 // 1 + the largest Huffman code length this package builds.

	maxNumLit  = 286 // 286 and 287 are reserved but must have assigned lengths.
	maxNumDist = 30

	maxLitDistCodeLen = 15 // RFC 1951 3.2.7: literal/length and distance codes.
	maxCodeLenCodeLen = 7  // RFC 1951 3.2.7: the code-length alphabet itself.
)

// lengthBase and lengthExtraBits give, for length symbol s in
// [257, 285], the base match length and number of extra bits read
// (LSB-first, via BitReader.readBits) and added to it. Symbol 285 has
// no extra bits and always means length 258.
var lengthBase = [...]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
	15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
	67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtraBits = [...]uint{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// distanceBase and distanceExtraBits give, for distance symbol d in
// [0, 29], the base distance and number of extra bits.
var distanceBase = [...]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25,
	33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
	1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

var distanceExtraBits = [...]uint{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// codeOrder is the order in which code-length code lengths are
// transmitted in a dynamic block header (RFC 1951 3.2.7). A fixed
// constant of the wire format, quoted identically in spec.md's Data
// Model section.
var codeOrder = [...]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// fixedLitLenLengths and fixedDistLengths are the code lengths of the
// fixed Huffman tables used by BTYPE=1 blocks (RFC 1951 3.2.6).
func fixedLitLenLengths() []int {
	lengths := make([]int, maxNumLit+2) // 288 symbols, incl. unused 286-287.
	for i := 0; i < 144; i++ {
		lengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		lengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		lengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		lengths[i] = 8
	}
	return lengths
}

func fixedDistLengths() []int {
	lengths := make([]int, distanceCodeCount+2) // 32 symbols, incl. unused 30-31.
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}
