package flate

// CanonicalCodeBuilder: convert a vector of code lengths into the
// canonical prefix-code assignment of RFC 1951 3.2.2, per spec.md 3
// ("Canonical code assignment") and 4.2.
//
// The bl_count/next_code computation below is pulled out as its own
// function so it can be tested and reasoned about independently of the
// table build in prefix.go, matching spec.md's separate BitReader /
// CanonicalCodeBuilder / PrefixTree components.

// canonicalCode is the per-symbol length and assigned code value
// produced by CanonicalCodeBuilder. Only symbols with length > 0 are
// populated; others have code == 0, length == 0 and must never be
// looked up.
type canonicalCode struct {
	length int
	code   int
}

// buildCanonicalCodes assigns canonical codes to the given per-symbol
// lengths, per RFC 1951 3.2.2:
//
//	bl_count[n]    = number of symbols with length n (bl_count[0] forced to 0)
//	next_code[1]   = 0
//	next_code[n]   = (next_code[n-1] + bl_count[n-1]) << 1
//	code(symbol)   = next_code[length(symbol)]++
//
// maxAllowedLen bounds the accepted code length (15 for literal/length
// and distance alphabets, 7 for the code-length alphabet, per spec.md
// 4.2). Oversubscribed or undersubscribed code sets are rejected as
// CorruptStream, except for the single-symbol special case (spec.md
// 4.2, "Exactly one symbol with nonzero length").
func buildCanonicalCodes(lengths []int, maxAllowedLen int) ([]canonicalCode, error) {
	var blCount [maxCodeLen]int
	minLen, maxLen := 0, 0
	numSyms := 0
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if n < 0 || n >= maxCodeLen || n > maxAllowedLen {
			return nil, corrupt(0, "code length out of range")
		}
		if minLen == 0 || n < minLen {
			minLen = n
		}
		if n > maxLen {
			maxLen = n
		}
		blCount[n]++
		numSyms++
	}

	codes := make([]canonicalCode, len(lengths))
	if maxLen == 0 {
		// All lengths zero: an empty tree. Valid for HDIST; any attempt
		// to decode with it later is a protocol error (spec.md 4.2).
		return codes, nil
	}

	var nextCode [maxCodeLen]int
	code := 0
	for n := 1; n <= maxLen; n++ {
		code = (code + blCount[n-1]) << 1
		nextCode[n] = code
	}

	// Completeness check: sum of 2^(maxLen-L[s]) over nonzero L[s] must
	// equal 2^maxLen. The single-symbol case (numSyms == 1) is the
	// RFC-silent special case spec.md 4.2/9 calls out: such a code is
	// accepted even though it is technically undersubscribed, and is
	// assigned code 0 of its declared length (de facto rule used by
	// compatible encoders).
	total := code + blCount[maxLen]
	full := 1 << uint(maxLen)
	if total != full && numSyms != 1 {
		return nil, corrupt(0, "oversubscribed or incomplete Huffman code")
	}

	next := nextCode
	for sym, n := range lengths {
		if n == 0 {
			continue
		}
		if numSyms == 1 {
			codes[sym] = canonicalCode{length: n, code: 0}
			continue
		}
		codes[sym] = canonicalCode{length: n, code: next[n]}
		next[n]++
	}
	return codes, nil
}
