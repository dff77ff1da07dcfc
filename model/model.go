// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package model defines the output tree populated while parsing a
// compressed stream: a tagged tree of record types, each numeric leaf
// wrapped in a bitstream.Located[T] carrying the bit range it was read
// from. Records are created during parsing and become immutable once
// their containing block completes; the tree is consumed, read-only, by
// an external serializer.
package model

import "github.com/cosnicolaou/deflate-parser/bitstream"

// Symbol constrains the alphabets a HuffmanCode/HuffmanTree can carry:
// the code-length alphabet (0-18) and distance alphabet (0-29) fit in
// uint8, the literal/length alphabet (0-285) needs uint16.
type Symbol interface {
	~uint8 | ~uint16
}

// HuffmanCode is one entry of a canonical Huffman code list: a symbol,
// its assigned integer code, the Located code length it was built from,
// and the code printed MSB-first in exactly Len.V characters.
type HuffmanCode[S Symbol] struct {
	Symbol S                        `json:"symbol"`
	Code   uint16                   `json:"code"`
	Len    bitstream.Located[uint8] `json:"len"`
	Bin    string                   `json:"bin"`
}

// HuffmanTree is a binary tree built from a HuffmanCode list. Exactly
// one of Symbol (a leaf holding a symbol), Children (an internal node),
// or neither (an empty leaf) is populated. Empty leaves remain in a
// built tree wherever the code list is incomplete; decoding into one is
// an error.
type HuffmanTree[S Symbol] struct {
	Symbol   *S                  `json:"symbol,omitempty"`
	Children *[2]HuffmanTree[S] `json:"children,omitempty"`
}

// IsNode reports whether t is an internal node.
func (t *HuffmanTree[S]) IsNode() bool { return t.Children != nil }

// IsEmptyLeaf reports whether t is a leaf with no assigned symbol.
func (t *HuffmanTree[S]) IsEmptyLeaf() bool { return t.Children == nil && t.Symbol == nil }

// StreamKind tags which variant of CompressedStream was parsed.
type StreamKind int

const (
	KindRawDeflate StreamKind = iota
	KindGzip
	KindDhtOnly
	KindZlib
)

func (k StreamKind) String() string {
	switch k {
	case KindRawDeflate:
		return "raw"
	case KindGzip:
		return "gzip"
	case KindDhtOnly:
		return "dht"
	case KindZlib:
		return "zlib"
	default:
		return "unknown"
	}
}

// CompressedStream is the tagged union of the four top-level streams
// this parser understands. Only the field matching Kind is populated.
type CompressedStream struct {
	Kind StreamKind           `json:"kind"`
	Raw  *DeflateStream       `json:"raw,omitempty"`
	Gzip *GzipStream          `json:"gzip,omitempty"`
	Dht  *DynamicHuffmanTable `json:"dht,omitempty"`
	Zlib *ZlibStream          `json:"zlib,omitempty"`
}

// GzipStream is an RFC 1952 gzip member: a fixed 10-byte header, an
// optional NUL-terminated file name (when FNAME is set), a DEFLATE
// sub-stream, and an 8-byte trailer.
type GzipStream struct {
	Magic    bitstream.Located[uint16]   `json:"magic"`
	Method   bitstream.Located[uint8]    `json:"method"`
	Flags    bitstream.Located[uint8]    `json:"flags"`
	Mtime    bitstream.Located[uint32]   `json:"mtime"`
	Xflags   bitstream.Located[uint8]    `json:"xflags"`
	OS       bitstream.Located[uint8]    `json:"os"`
	Name     *bitstream.Located[string]  `json:"name,omitempty"`
	Deflate  *DeflateStream              `json:"deflate,omitempty"`
	Checksum bitstream.Located[uint32]   `json:"checksum"`
	Isize    bitstream.Located[uint32]   `json:"isize"`
}

// ZlibStream is an RFC 1950 zlib stream: a 2-byte header, an optional
// 4-byte dictionary id (when FDICT is set), a DEFLATE sub-stream, and a
// 4-byte Adler-32 trailer.
type ZlibStream struct {
	CMF     bitstream.Located[uint8]   `json:"cmf"`
	FLG     bitstream.Located[uint8]   `json:"flg"`
	DictID  *bitstream.Located[uint32] `json:"dictid,omitempty"`
	Deflate *DeflateStream             `json:"deflate,omitempty"`
	Adler32 bitstream.Located[uint32]  `json:"adler32"`
}

// DeflateStream is the ordered sequence of blocks making up a DEFLATE
// payload.
type DeflateStream struct {
	Blocks []DeflateBlock `json:"blocks"`
}

// DeflateBlockHeader is the 3-bit block header of RFC 1951 §3.2.3.
type DeflateBlockHeader struct {
	BFinal bitstream.Located[uint8] `json:"bfinal"`
	BType  bitstream.Located[uint8] `json:"btype"`
}

// DeflateBlock is one decoded block: its header, the bit position it
// ended at, the byte range of reconstructed plaintext it produced, and
// the extension matching its BType.
type DeflateBlock struct {
	Header     DeflateBlockHeader `json:"header"`
	End        uint64             `json:"end"`
	PlainStart uint64             `json:"plain_start"`
	PlainEnd   uint64             `json:"plain_end"`
	Stored     *StoredBlock       `json:"stored,omitempty"`
	Fixed      *FixedBlock        `json:"fixed,omitempty"`
	Dynamic    *DynamicBlock      `json:"dynamic,omitempty"`
}

// StoredBlock is a BTYPE=00 block (RFC 1951 §3.2.4).
type StoredBlock struct {
	Len  bitstream.Located[uint16]  `json:"len"`
	Nlen bitstream.Located[uint16]  `json:"nlen"`
	Data *bitstream.Located[string] `json:"data,omitempty"`
}

// FixedBlock is a BTYPE=01 block. Tokens is only populated when data
// capture is enabled.
type FixedBlock struct {
	Tokens []Token `json:"tokens,omitempty"`
}

// DynamicBlock is a BTYPE=10 block. Tokens is only populated when data
// capture is enabled.
type DynamicBlock struct {
	DHT    DynamicHuffmanTable `json:"dht"`
	Tokens []Token             `json:"tokens,omitempty"`
}

// DynamicHuffmanTable captures the code-length alphabet, and the
// derived literal/length and distance alphabets, of a dynamic Huffman
// block (RFC 1951 §3.2.7).
type DynamicHuffmanTable struct {
	HLit        bitstream.Located[uint8]   `json:"hlit"`
	HDist       bitstream.Located[uint8]   `json:"hdist"`
	HCLen       bitstream.Located[uint8]   `json:"hclen"`
	HCLens      []bitstream.Located[uint8] `json:"hclens"`
	HCLensCodes []HuffmanCode[uint8]       `json:"hclens_codes"`
	HCLensTree  *HuffmanTree[uint8]        `json:"hclens_tree"`
	HLits       []bitstream.Located[uint8] `json:"hlits"`
	HLitsCodes  []HuffmanCode[uint16]      `json:"hlits_codes"`
	HLitsTree   *HuffmanTree[uint16]       `json:"hlits_tree"`
	HDistsCodes []HuffmanCode[uint8]       `json:"hdists_codes"`
	HDistsTree  *HuffmanTree[uint8]        `json:"hdists_tree"`
}

// TokenKind tags which variant of Token is populated.
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenEob
	TokenWindow
)

// Token is a decoded literal, end-of-block marker, or length/distance
// pair within a compressed block.
type Token struct {
	Kind    TokenKind     `json:"kind"`
	Literal *LiteralToken `json:"literal,omitempty"`
	Eob     *EobToken     `json:"eob,omitempty"`
	Window  *WindowToken  `json:"window,omitempty"`
}

// LiteralToken is a single decoded byte literal.
type LiteralToken struct {
	PlainPos uint64 `json:"plain_pos"`
	Byte     byte   `json:"byte"`
	Char     string `json:"char"`
}

// EobToken marks the end of a block's token stream.
type EobToken struct {
	PlainPos uint64 `json:"plain_pos"`
}

// WindowToken is a decoded length/distance back-reference, with both
// the raw Huffman-coded fields and their decoded values, and the copied
// bytes as hex when data capture is enabled.
type WindowToken struct {
	PlainPos      uint64                    `json:"plain_pos"`
	Length        bitstream.Located[uint16] `json:"length"`
	LengthExtra   bitstream.Located[uint16] `json:"length_extra"`
	LengthValue   uint16                    `json:"length_value"`
	Distance      bitstream.Located[uint8]  `json:"distance"`
	DistanceExtra bitstream.Located[uint16] `json:"distance_extra"`
	DistanceValue uint16                    `json:"distance_value"`
	Hex           string                    `json:"hex,omitempty"`
}
