// Package bitio provides a bit-level reader over an in-memory byte buffer,
// with the two distinct bit-assembly orderings DEFLATE needs: LSB-first for
// fixed-width fields and MSB-first for Huffman code descent.
package bitio

import "errors"

// ErrShortRead is returned when a read would advance the cursor past the
// end of the underlying buffer.
var ErrShortRead = errors.New("bitio: short read")

// ErrInvalidWidth is returned by the Bits* methods for n == 0 or n > 64.
var ErrInvalidWidth = errors.New("bitio: invalid bit width")

// Reader reads bits from a byte slice, advancing a monotonically
// increasing cursor measured in bits from the start of the buffer.
//
// Within a byte, bits are numbered least-significant first: bit 0 of
// byte n, then bit 1, ..., bit 7, then bit 0 of byte n+1.
type Reader struct {
	data []byte
	pos  int // cursor, in bits
}

// NewReader wraps data for bit-at-a-time reading starting at the buffer's
// first bit.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// BitPos returns the current cursor position in bits.
func (r *Reader) BitPos() int {
	return r.pos
}

// Len returns the total number of addressable bits in the buffer.
func (r *Reader) Len() int {
	return len(r.data) * 8
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return r.Len() - r.pos
}

// PopBit reads the next single bit and advances the cursor by one.
func (r *Reader) PopBit() (uint8, error) {
	if r.pos >= r.Len() {
		return 0, ErrShortRead
	}
	b := r.data[r.pos>>3]
	bit := (b >> uint(r.pos&7)) & 1
	r.pos++
	return bit, nil
}

// ReadBitsLSB reads n bits (1..=64) and assembles them so that the first
// bit popped becomes bit 0 of the result. This is the ordering DEFLATE
// uses for its fixed-width fields (CM, CINFO, BFINAL, BTYPE, HLIT, ...).
func (r *Reader) ReadBitsLSB(n int) (uint64, error) {
	if n <= 0 || n > 64 {
		return 0, ErrInvalidWidth
	}
	if r.Remaining() < n {
		return 0, ErrShortRead
	}
	var result uint64
	for i := 0; i < n; i++ {
		bit, err := r.PopBit()
		if err != nil {
			return 0, err
		}
		result |= uint64(bit) << uint(i)
	}
	return result, nil
}

// ReadBitsMSB reads n bits (1..=64) and assembles them so that each new
// bit is appended as the new low bit after a left shift of the
// accumulator — the ordering used when walking a Huffman code trie one
// bit at a time.
func (r *Reader) ReadBitsMSB(n int) (uint64, error) {
	if n <= 0 || n > 64 {
		return 0, ErrInvalidWidth
	}
	if r.Remaining() < n {
		return 0, ErrShortRead
	}
	var result uint64
	for i := 0; i < n; i++ {
		bit, err := r.PopBit()
		if err != nil {
			return 0, err
		}
		result = (result << 1) | uint64(bit)
	}
	return result, nil
}

// AlignToByte advances the cursor to the next multiple of 8 bits. It is a
// no-op if the cursor already sits on a byte boundary. Used by DEFLATE
// stored blocks before reading LEN/NLEN.
func (r *Reader) AlignToByte() {
	r.pos = (r.pos + 7) &^ 7
}

// PeekBitsLSB returns up to n upcoming bits (LSB-first assembled, same
// ordering as ReadBitsLSB) without advancing the cursor. If fewer than n
// bits remain, the result is zero-padded in the high bits and available
// reports how many bits were real. n must be in 1..=32.
//
// This backs the Huffman decoder's table lookups: peek a window, decode
// a symbol against it, then Advance by however many bits the symbol
// actually consumed.
func (r *Reader) PeekBitsLSB(n int) (bits uint32, available int) {
	save := r.pos
	defer func() { r.pos = save }()

	limit := n
	if r.Remaining() < limit {
		limit = r.Remaining()
	}
	var result uint32
	for i := 0; i < limit; i++ {
		bit, _ := r.PopBit()
		result |= uint32(bit) << uint(i)
	}
	return result, limit
}

// Advance consumes n bits already inspected via PeekBitsLSB, without
// reassembling them. Fails if fewer than n bits remain.
func (r *Reader) Advance(n int) error {
	if r.Remaining() < n {
		return ErrShortRead
	}
	r.pos += n
	return nil
}
