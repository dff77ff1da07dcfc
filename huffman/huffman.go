// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package huffman builds canonical Huffman codes and trees from code
// lengths, faithful to RFC 1951 §3.2.2, and decodes symbols from them.
// The construction shape (sort code lengths by symbol, assign ascending
// codes per length, then build a binary tree) follows the canonical
// code builder in the teacher's internal/bzip2/huffman.go, adapted from
// bzip2's MSB-packed 32-bit codes and shortcut table to RFC 1951's
// bl_count/next_code algorithm and a tree representation that
// serializes directly as nested JSON.
package huffman

import (
	"sort"

	"github.com/cosnicolaou/deflate-parser/bitstream"
	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/parseerr"
)

// MaxBits is the maximum code length RFC 1951 allows.
const MaxBits = 15

// BuildCodes implements RFC 1951 §3.2.2: it counts codes per length,
// computes the smallest code for each length, then assigns codes to
// symbols in ascending symbol order. Symbols with a zero code length,
// or beyond the end of lens, are omitted.
func BuildCodes[S model.Symbol](alphabet []S, lens []bitstream.Located[uint8]) []model.HuffmanCode[S] {
	var blCount [MaxBits + 1]uint16
	for _, l := range lens {
		blCount[l.V]++
	}
	blCount[0] = 0

	var nextCode [MaxBits + 1]uint16
	code := uint16(0)
	for bits := 1; bits <= MaxBits; bits++ {
		code = (code + blCount[bits-1]) << 1
		nextCode[bits] = code
	}

	codes := make([]model.HuffmanCode[S], 0, len(alphabet))
	for i, sym := range alphabet {
		if i >= len(lens) {
			break
		}
		if lens[i].V == 0 {
			continue
		}
		codes = append(codes, model.HuffmanCode[S]{Symbol: sym, Len: lens[i]})
	}
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i].Symbol < codes[j].Symbol
	})
	for i := range codes {
		length := codes[i].Len.V
		codes[i].Code = nextCode[length]
		codes[i].Bin = binString(nextCode[length], int(length))
		nextCode[length]++
	}
	return codes
}

// BuildTree inserts each code into a binary tree by walking MSB-first.
// Conflicts (a non-empty leaf where one is expected, or descending into
// a leaf) are reported as a ParseError naming the offending symbols.
func BuildTree[S model.Symbol](codes []model.HuffmanCode[S]) (*model.HuffmanTree[S], error) {
	root := &model.HuffmanTree[S]{}
	for _, c := range codes {
		if err := insert(root, c.Len.Start, c.Code, int(c.Len.V), c.Symbol); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func insert[S model.Symbol](t *model.HuffmanTree[S], pos uint64, code uint16, length int, symbol S) error {
	if length == 0 {
		if !t.IsEmptyLeaf() {
			return conflictError(t, pos, symbol)
		}
		sym := symbol
		t.Symbol = &sym
		return nil
	}
	if t.IsEmptyLeaf() {
		t.Children = &[2]model.HuffmanTree[S]{}
	} else if !t.IsNode() {
		return conflictError(t, pos, symbol)
	}
	bit := (code >> (length - 1)) & 1
	return insert(&t.Children[bit], pos+1, code, length-1, symbol)
}

func conflictError[S model.Symbol](t *model.HuffmanTree[S], pos uint64, symbol S) error {
	if t.Symbol != nil {
		return &parseerr.ParseError{Pos: pos, Msg: "Conflict (symbol=" + symString(*t.Symbol) + " and " + symString(symbol) + ")"}
	}
	return &parseerr.ParseError{Pos: pos, Msg: "Conflict (symbol=" + symString(symbol) + ")"}
}

// Decode reads one bit at a time from c, descending tree until a leaf
// is hit. Hitting an empty leaf is a ParseError whose message includes
// the partial code in binary.
func Decode[S model.Symbol](c *bitstream.Cursor, tree *model.HuffmanTree[S]) (bitstream.Located[S], error) {
	start := c.Pos()
	node := tree
	var code uint16
	var length int
	for {
		if node.Symbol != nil {
			return bitstream.Located[S]{V: *node.Symbol, Start: start, End: c.Pos()}, nil
		}
		if !node.IsNode() {
			return bitstream.Located[S]{}, &parseerr.ParseError{Pos: c.Pos(), Msg: "Code=0b" + binString(code, length)}
		}
		bit, err := bitstream.PopBits[uint8](c, 1)
		if err != nil {
			return bitstream.Located[S]{}, err
		}
		code = (code << 1) | uint16(bit.V)
		length++
		node = &node.Children[bit.V]
	}
}

func binString(code uint16, length int) string {
	b := make([]byte, length)
	for i := 0; i < length; i++ {
		bit := (code >> (length - 1 - i)) & 1
		if bit == 1 {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

func symString[S model.Symbol](s S) string {
	return itoa(uint64(s))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
