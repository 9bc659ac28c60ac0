// Package pngdec provides a pure Go decoder for the PNG image format.
//
// It implements PNG's chunk framing (IHDR/PLTE/tRNS/IDAT/IEND), its own
// DEFLATE/zlib inflater (RFC 1950 + RFC 1951), per-scanline filter
// reversal (None/Sub/Up/Average/Paeth), and conversion from every
// standard 8-bit color type to RGBA, without CGo dependencies.
//
// The package supports:
//   - Chunk parsing with ordering validation
//   - DEFLATE/zlib inflation (stored, fixed-Huffman, dynamic-Huffman blocks)
//   - Scanline unfiltering
//   - Grayscale, RGB, indexed (with palette and tRNS), gray+alpha, and RGBA color types
//
// Basic usage for decoding:
//
//	img, err := pngdec.Decode(reader)
package pngdec
