// Package huffman builds canonical Huffman decode tables from a
// symbol-length vector and decodes symbols from them.
//
// Construction follows RFC 1951 §3.2.2: codes are assigned in order of
// increasing length, and lexicographically within a length. Decoding
// uses a flattened two-level table indexed by a window of upcoming bits
// (root table plus linked sub-tables for codes longer than the root),
// rather than a heap-allocated trie, for cache locality and to avoid a
// per-symbol pointer chase.
package huffman

import "errors"

// MaxCodeLength is the longest canonical code length this package
// supports, matching RFC 1951's own limit.
const MaxCodeLength = 15

// Errors returned by Build.
var (
	ErrInvalidTree      = errors.New("huffman: invalid code tree")
	ErrEmptyCodeLengths = errors.New("huffman: no symbol has a nonzero code length")
)

// code is one entry in a Table: either a resolved leaf (Bits <=
// rootBits, Symbol is the decoded value) or, in the root table only, a
// pointer to a second-level sub-table (Bits > rootBits, Symbol is the
// sub-table's starting offset).
type code struct {
	Bits   uint8
	Symbol uint16
}

// Table is a built canonical Huffman decode table.
type Table struct {
	entries  []code
	rootBits int
}

// Build constructs a Table from codeLengths, indexed by symbol value;
// codeLengths[sym] == 0 means symbol sym does not appear in the
// alphabet. rootBits sizes the first-level lookup table (1<<rootBits
// entries); codes longer than rootBits spill into linked sub-tables.
//
// Zero-length entries are never assigned a code and can never be
// produced by Decode — a tree built entirely of absent symbols, or with
// a code length exceeding MaxCodeLength, is rejected outright rather
// than silently decoding a phantom symbol at the root.
func Build(rootBits int, codeLengths []int) (*Table, error) {
	n := len(codeLengths)
	if n == 0 {
		return nil, ErrEmptyCodeLengths
	}

	var count [MaxCodeLength + 1]int
	for _, cl := range codeLengths {
		if cl > MaxCodeLength {
			return nil, ErrInvalidTree
		}
		count[cl]++
	}
	if count[0] == n {
		return nil, ErrEmptyCodeLengths
	}

	totalSize := tableSize(rootBits, codeLengths)
	if totalSize == 0 {
		return nil, ErrInvalidTree
	}
	entries := make([]code, totalSize)

	var offset [MaxCodeLength + 1]int
	for l := 1; l < MaxCodeLength; l++ {
		if count[l] > (1 << uint(l)) {
			return nil, ErrInvalidTree
		}
		offset[l+1] = offset[l] + count[l]
	}
	sorted := make([]uint16, n)
	for sym, cl := range codeLengths {
		if cl == 0 {
			continue
		}
		if offset[cl] >= n {
			return nil, ErrInvalidTree
		}
		sorted[offset[cl]] = uint16(sym)
		offset[cl]++
	}

	// A single surviving symbol decodes unconditionally, consuming 0 bits.
	if offset[MaxCodeLength] == 1 {
		fill(entries, 1, totalSize, code{Bits: 0, Symbol: sorted[0]})
		return &Table{entries: entries, rootBits: rootBits}, nil
	}

	for i := range count {
		count[i] = 0
	}
	for _, cl := range codeLengths {
		count[cl]++
	}

	tableOff := 0
	tableBits := rootBits
	tableSz := 1 << uint(tableBits)
	mask := uint32(1<<uint(rootBits)) - 1

	var low uint32 = 0xffffffff
	var key uint32
	numNodes := 1
	numOpen := 1
	symbol := 0

	for l, step := 1, 2; l <= rootBits; l, step = l+1, step<<1 {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return nil, ErrInvalidTree
		}
		for ; count[l] > 0; count[l]-- {
			c := code{Bits: uint8(l), Symbol: sorted[symbol]}
			symbol++
			fill(entries[key:], step, tableSz, c)
			key = nextKey(key, l)
		}
	}

	for l, step := rootBits+1, 2; l <= MaxCodeLength; l, step = l+1, step<<1 {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return nil, ErrInvalidTree
		}
		for ; count[l] > 0; count[l]-- {
			if (key & mask) != low {
				tableOff += tableSz
				tableBits = subTableBits(count[:], l, rootBits)
				tableSz = 1 << uint(tableBits)
				if tableOff+tableSz > totalSize {
					return nil, ErrInvalidTree
				}
				low = key & mask
				entries[low] = code{Bits: uint8(tableBits + rootBits), Symbol: uint16(tableOff)}
			}
			c := code{Bits: uint8(l - rootBits), Symbol: sorted[symbol]}
			symbol++
			off := tableOff + int(key>>uint(rootBits))
			if off >= totalSize {
				return nil, ErrInvalidTree
			}
			fill(entries[off:], step, tableSz, c)
			key = nextKey(key, l)
		}
	}

	if numNodes != 2*offset[MaxCodeLength]-1 {
		return nil, ErrInvalidTree
	}

	return &Table{entries: entries, rootBits: rootBits}, nil
}

// Decode reads one symbol from peek, a window of upcoming bits
// LSB-first assembled (see bitio.Reader.PeekBitsLSB — the same
// ordering the table was built to match via canonical-code bit
// reversal). It returns the decoded symbol and the number of bits the
// caller must now advance past.
func (t *Table) Decode(peek uint32) (symbol uint16, bitsUsed int) {
	mask := uint32(1<<uint(t.rootBits)) - 1
	e := t.entries[peek&mask]
	extra := int(e.Bits) - t.rootBits
	if extra > 0 {
		bitsUsed = t.rootBits
		peek >>= uint(t.rootBits)
		idx := int(e.Symbol) + int(peek&((1<<uint(extra))-1))
		e = t.entries[idx]
		bitsUsed += int(e.Bits)
		return e.Symbol, bitsUsed
	}
	return e.Symbol, int(e.Bits)
}

// tableSize computes the total entry count (root + sub-tables) a call
// to Build with the same arguments would need, without writing
// anything. Returns 0 if the code lengths don't form a valid tree.
func tableSize(rootBits int, codeLengths []int) int {
	n := len(codeLengths)
	total := 1 << uint(rootBits)

	var count [MaxCodeLength + 1]int
	for _, cl := range codeLengths {
		if cl > MaxCodeLength {
			return 0
		}
		count[cl]++
	}
	if count[0] == n {
		return 0
	}

	var offset [MaxCodeLength + 1]int
	for l := 1; l < MaxCodeLength; l++ {
		if count[l] > (1 << uint(l)) {
			return 0
		}
		offset[l+1] = offset[l] + count[l]
	}
	for _, cl := range codeLengths {
		if cl == 0 {
			continue
		}
		if offset[cl] >= n {
			return 0
		}
		offset[cl]++
	}

	if offset[MaxCodeLength] == 1 {
		return total
	}

	mask := uint32(1<<uint(rootBits)) - 1
	var key uint32
	numNodes := 1
	numOpen := 1

	for l := 1; l <= rootBits; l++ {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return 0
		}
		for ; count[l] > 0; count[l]-- {
			key = nextKey(key, l)
		}
	}

	var low uint32 = 0xffffffff
	tableSz := 1 << uint(rootBits)
	for l := rootBits + 1; l <= MaxCodeLength; l++ {
		numOpen <<= 1
		numNodes += numOpen
		numOpen -= count[l]
		if numOpen < 0 {
			return 0
		}
		for ; count[l] > 0; count[l]-- {
			if (key & mask) != low {
				tableSz = 1 << uint(subTableBits(count[:], l, rootBits))
				total += tableSz
				low = key & mask
			}
			key = nextKey(key, l)
		}
	}

	if numNodes != 2*offset[MaxCodeLength]-1 {
		return 0
	}
	return total
}

// nextKey returns reverse(reverse(key, length) + 1, length) — the
// canonical-code successor expressed in the bit-reversed form the
// flattened table is indexed by.
func nextKey(key uint32, length int) uint32 {
	step := uint32(1) << uint(length-1)
	for key&step != 0 {
		step >>= 1
	}
	if step != 0 {
		return (key & (step - 1)) + step
	}
	return key
}

// fill writes code into table[0], table[step], ..., table[end-step].
func fill(table []code, step, end int, c code) {
	for i := end - step; i >= 0; i -= step {
		table[i] = c
	}
}

// subTableBits returns the width of the next second-level sub-table,
// sized to cover every remaining code at or below the run of lengths
// starting at length.
func subTableBits(count []int, length, rootBits int) int {
	left := 1 << uint(length-rootBits)
	for length < MaxCodeLength {
		left -= count[length]
		if left <= 0 {
			break
		}
		length++
		left <<= 1
	}
	return length - rootBits
}
