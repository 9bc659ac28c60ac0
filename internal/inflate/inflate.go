// Package inflate implements a RFC 1950 (zlib) + RFC 1951 (DEFLATE)
// decompressor: zlib header parsing, the stored/fixed/dynamic block
// loop, canonical Huffman tree assembly, and LZ77 back-reference
// expansion.
package inflate

import (
	"github.com/pkg/errors"

	"github.com/Rublue3748/image-parser/internal/bitio"
	"github.com/Rublue3748/image-parser/internal/huffman"
)

// Sentinel error kinds. Every failure from this package wraps one of
// these so callers can match with errors.Is after unwrapping.
var (
	ErrBadCompressionMethod = errors.New("inflate: unsupported compression method")
	ErrReservedBlockType    = errors.New("inflate: reserved block type 11")
	ErrLenMismatch          = errors.New("inflate: stored block LEN/NLEN mismatch")
	ErrHuffmanDecode        = errors.New("inflate: invalid Huffman code")
	ErrBackrefOutOfRange    = errors.New("inflate: back-reference offset exceeds output length")
	ErrTruncated            = errors.New("inflate: unexpected end of input")
)

const (
	litLenRootBits  = 9
	distRootBits    = 6
	codeLenRootBits = 7

	// numDistanceCodes is the count of valid DEFLATE distance symbols;
	// codes 30 and 31 are reserved and never legitimately occur.
	numDistanceCodes = 30
)

// codeLengthOrder is the fixed permutation the dynamic block header uses
// to transmit the 19 code-length-alphabet lengths (RFC 1951 §3.2.7).
var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// Inflate decompresses a complete zlib-wrapped DEFLATE stream.
func Inflate(data []byte) ([]byte, error) {
	br := bitio.NewReader(data)

	cm, err := br.ReadBitsLSB(4)
	if err != nil {
		return nil, errors.Wrap(ErrTruncated, "zlib header")
	}
	if _, err := br.ReadBitsLSB(4); err != nil { // CINFO, unvalidated
		return nil, errors.Wrap(ErrTruncated, "zlib header")
	}
	if cm != 8 {
		return nil, errors.Wrapf(ErrBadCompressionMethod, "CM=%d", cm)
	}
	if _, err := br.ReadBitsLSB(5); err != nil { // FCHECK, unvalidated
		return nil, errors.Wrap(ErrTruncated, "zlib header")
	}
	fdict, err := br.ReadBitsLSB(1)
	if err != nil {
		return nil, errors.Wrap(ErrTruncated, "zlib header")
	}
	if _, err := br.ReadBitsLSB(2); err != nil { // FLEVEL, unvalidated
		return nil, errors.Wrap(ErrTruncated, "zlib header")
	}
	if fdict == 1 {
		if _, err := br.ReadBitsLSB(32); err != nil { // preset dictionary id, discarded
			return nil, errors.Wrap(ErrTruncated, "zlib FDICT id")
		}
	}

	out := make([]byte, 0, len(data)*3)
	for {
		final, err := inflateBlock(br, &out)
		if err != nil {
			return nil, err
		}
		if final {
			break
		}
	}
	// Adler-32 trailer follows but is not validated; see DESIGN.md.
	return out, nil
}

// inflateBlock decodes one DEFLATE block, appending to *out, and reports
// whether it was the final block in the stream (BFINAL).
func inflateBlock(br *bitio.Reader, out *[]byte) (final bool, err error) {
	bfinal, err := br.ReadBitsLSB(1)
	if err != nil {
		return false, errors.Wrap(ErrTruncated, "block header")
	}
	btype, err := br.ReadBitsLSB(2)
	if err != nil {
		return false, errors.Wrap(ErrTruncated, "block header")
	}

	switch btype {
	case 0b00:
		if err := copyStoredBlock(br, out); err != nil {
			return false, err
		}
	case 0b01:
		litTable, distTable := fixedTrees()
		if err := decodeSymbols(br, out, litTable, distTable); err != nil {
			return false, err
		}
	case 0b10:
		litTable, distTable, err := dynamicTrees(br)
		if err != nil {
			return false, err
		}
		if err := decodeSymbols(br, out, litTable, distTable); err != nil {
			return false, err
		}
	default:
		return false, ErrReservedBlockType
	}
	return bfinal == 1, nil
}

func copyStoredBlock(br *bitio.Reader, out *[]byte) error {
	br.AlignToByte()
	length, err := br.ReadBitsLSB(16)
	if err != nil {
		return errors.Wrap(ErrTruncated, "stored block LEN")
	}
	nlength, err := br.ReadBitsLSB(16)
	if err != nil {
		return errors.Wrap(ErrTruncated, "stored block NLEN")
	}
	if (^length)&0xffff != nlength {
		return ErrLenMismatch
	}
	for i := uint64(0); i < length; i++ {
		b, err := br.ReadBitsLSB(8)
		if err != nil {
			return errors.Wrap(ErrTruncated, "stored block data")
		}
		*out = append(*out, byte(b))
	}
	return nil
}

// fixedTrees builds the static literal/length and distance tables RFC
// 1951 §3.2.6 defines.
func fixedTrees() (lit, dist *huffman.Table) {
	litLengths := make([]int, 288)
	for i := 0; i < 144; i++ {
		litLengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		litLengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		litLengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		litLengths[i] = 8
	}
	distLengths := make([]int, 32)
	for i := range distLengths {
		distLengths[i] = 5
	}
	litTable, err := huffman.Build(litLenRootBits, litLengths)
	if err != nil {
		// The fixed tree's lengths are a compile-time constant and always
		// form a valid Kraft-complete tree; a build failure here is a bug
		// in this package, not a malformed-input condition.
		panic("inflate: fixed literal/length tree failed to build: " + err.Error())
	}
	distTable, err := huffman.Build(5, distLengths)
	if err != nil {
		panic("inflate: fixed distance tree failed to build: " + err.Error())
	}
	return litTable, distTable
}

// dynamicTrees reads HLIT/HDIST/HCLEN and the embedded code-length
// alphabet, then decodes the literal/length and distance code lengths
// it describes.
func dynamicTrees(br *bitio.Reader) (lit, dist *huffman.Table, err error) {
	hlitRaw, err := br.ReadBitsLSB(5)
	if err != nil {
		return nil, nil, errors.Wrap(ErrTruncated, "HLIT")
	}
	hdistRaw, err := br.ReadBitsLSB(5)
	if err != nil {
		return nil, nil, errors.Wrap(ErrTruncated, "HDIST")
	}
	hclenRaw, err := br.ReadBitsLSB(4)
	if err != nil {
		return nil, nil, errors.Wrap(ErrTruncated, "HCLEN")
	}
	hlit := int(hlitRaw) + 257
	hdist := int(hdistRaw) + 1
	hclen := int(hclenRaw) + 4

	clLengths := make([]int, 19)
	for i := 0; i < hclen; i++ {
		v, err := br.ReadBitsLSB(3)
		if err != nil {
			return nil, nil, errors.Wrap(ErrTruncated, "code-length alphabet")
		}
		clLengths[codeLengthOrder[i]] = int(v)
	}
	clTable, err := huffman.Build(codeLenRootBits, clLengths)
	if err != nil {
		return nil, nil, errors.Wrap(ErrHuffmanDecode, "code-length tree: "+err.Error())
	}

	literals := make([]int, 0, hlit+hdist)
	for len(literals) < hlit+hdist {
		sym, err := decodeSymbol(br, clTable)
		if err != nil {
			return nil, nil, err
		}
		switch sym {
		case 16:
			if len(literals) == 0 {
				return nil, nil, errors.Wrap(ErrHuffmanDecode, "repeat code 16 with no previous length")
			}
			extra, err := br.ReadBitsLSB(2)
			if err != nil {
				return nil, nil, errors.Wrap(ErrTruncated, "repeat code 16 extra bits")
			}
			prev := literals[len(literals)-1]
			for i := 0; i < int(extra)+3; i++ {
				literals = append(literals, prev)
			}
		case 17:
			extra, err := br.ReadBitsLSB(3)
			if err != nil {
				return nil, nil, errors.Wrap(ErrTruncated, "repeat code 17 extra bits")
			}
			for i := 0; i < int(extra)+3; i++ {
				literals = append(literals, 0)
			}
		case 18:
			extra, err := br.ReadBitsLSB(7)
			if err != nil {
				return nil, nil, errors.Wrap(ErrTruncated, "repeat code 18 extra bits")
			}
			for i := 0; i < int(extra)+11; i++ {
				literals = append(literals, 0)
			}
		default:
			literals = append(literals, sym)
		}
	}
	if len(literals) > hlit+hdist {
		return nil, nil, errors.Wrap(ErrHuffmanDecode, "code-length run overshoots HLIT+HDIST")
	}

	litTable, err := huffman.Build(litLenRootBits, literals[:hlit])
	if err != nil {
		return nil, nil, errors.Wrap(ErrHuffmanDecode, "literal/length tree: "+err.Error())
	}

	distLengths := literals[hlit : hlit+hdist]
	distTable, err := huffman.Build(distRootBits, distLengths)
	if err != nil {
		if err == huffman.ErrEmptyCodeLengths {
			// A block that emits no back-references may legally carry an
			// all-zero-length distance alphabet (HDIST==1, length 0). Any
			// attempt to actually decode a distance symbol is then itself
			// an error, caught in decodeSymbols.
			distTable = nil
		} else {
			return nil, nil, errors.Wrap(ErrHuffmanDecode, "distance tree: "+err.Error())
		}
	}

	return litTable, distTable, nil
}

// decodeSymbols runs the literal/length + distance decode loop for a
// fixed- or dynamic-Huffman block until the end-of-block symbol (256).
func decodeSymbols(br *bitio.Reader, out *[]byte, litTable, distTable *huffman.Table) error {
	for {
		sym, err := decodeSymbol(br, litTable)
		if err != nil {
			return err
		}
		switch {
		case sym == 256:
			return nil
		case sym < 256:
			*out = append(*out, byte(sym))
		default:
			length, err := lengthFromSymbol(sym, br)
			if err != nil {
				return err
			}
			if distTable == nil {
				return errors.Wrap(ErrHuffmanDecode, "back-reference with no distance tree")
			}
			distSym, err := decodeSymbol(br, distTable)
			if err != nil {
				return err
			}
			if distSym >= numDistanceCodes {
				return errors.Wrapf(ErrHuffmanDecode, "reserved distance code %d", distSym)
			}
			offset, err := offsetFromSymbol(distSym, br)
			if err != nil {
				return err
			}
			if offset > len(*out) {
				return errors.Wrapf(ErrBackrefOutOfRange, "offset=%d output_len=%d", offset, len(*out))
			}
			// Byte-by-byte: when offset < length the run overlaps itself,
			// and each newly appended byte must be visible to later
			// iterations of this same copy. A bulk copy() would read
			// stale bytes past the point where the source and
			// destination windows collide.
			for i := 0; i < length; i++ {
				*out = append(*out, (*out)[len(*out)-offset])
			}
		}
	}
}

// decodeSymbol reads one symbol from table, peeking a window of
// upcoming bits (LSB-assembled, matching the canonical-code bit
// reversal the table was built with) and advancing past however many
// bits the decoded symbol actually used.
func decodeSymbol(br *bitio.Reader, table *huffman.Table) (int, error) {
	peek, avail := br.PeekBitsLSB(24)
	sym, bits := table.Decode(peek)
	if bits == 0 {
		// A tree with a single code decodes without consuming bits, but
		// DEFLATE transmits that lone code as one bit.
		bits = 1
	}
	if bits < 0 || bits > avail {
		if avail < 24 {
			return 0, errors.Wrap(ErrTruncated, "symbol decode")
		}
		return 0, ErrHuffmanDecode
	}
	if err := br.Advance(bits); err != nil {
		return 0, errors.Wrap(ErrTruncated, "symbol decode")
	}
	return int(sym), nil
}

// lengthFromSymbol computes the LZ77 match length a length symbol
// (257..285) represents, consuming any extra bits RFC 1951 §3.2.5
// requires.
func lengthFromSymbol(sym int, br *bitio.Reader) (int, error) {
	switch {
	case sym >= 257 && sym <= 264:
		return sym - 257 + 3, nil
	case sym >= 265 && sym <= 268:
		extra, err := br.ReadBitsLSB(1)
		if err != nil {
			return 0, errors.Wrap(ErrTruncated, "length extra bits")
		}
		return (sym-265)*2 + 11 + int(extra), nil
	case sym >= 269 && sym <= 272:
		extra, err := br.ReadBitsLSB(2)
		if err != nil {
			return 0, errors.Wrap(ErrTruncated, "length extra bits")
		}
		return (sym-269)*4 + 19 + int(extra), nil
	case sym >= 273 && sym <= 276:
		extra, err := br.ReadBitsLSB(3)
		if err != nil {
			return 0, errors.Wrap(ErrTruncated, "length extra bits")
		}
		return (sym-273)*8 + 35 + int(extra), nil
	case sym >= 277 && sym <= 280:
		extra, err := br.ReadBitsLSB(4)
		if err != nil {
			return 0, errors.Wrap(ErrTruncated, "length extra bits")
		}
		return (sym-277)*16 + 67 + int(extra), nil
	case sym >= 281 && sym <= 284:
		extra, err := br.ReadBitsLSB(5)
		if err != nil {
			return 0, errors.Wrap(ErrTruncated, "length extra bits")
		}
		return (sym-281)*32 + 131 + int(extra), nil
	case sym == 285:
		return 258, nil
	default:
		return 0, errors.Wrapf(ErrHuffmanDecode, "length symbol %d out of range", sym)
	}
}

// offsetFromSymbol computes the LZ77 back-reference distance a distance
// symbol (0..29) represents, consuming any extra bits.
func offsetFromSymbol(sym int, br *bitio.Reader) (int, error) {
	if sym <= 3 {
		return sym + 1, nil
	}
	numExtra := sym/2 - 1
	offset := 1 << uint(numExtra+1)
	offset |= (sym & 1) << uint(numExtra)
	extra, err := br.ReadBitsLSB(numExtra)
	if err != nil {
		return 0, errors.Wrap(ErrTruncated, "distance extra bits")
	}
	offset |= int(extra)
	return offset + 1, nil
}
