// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package deflate decodes the DEFLATE bitstream of RFC 1951: the block
// header, all three block types (stored, fixed Huffman, dynamic
// Huffman), the recursive code-length alphabet, and the token loop that
// turns Huffman symbols into literals, end-of-block, and
// length/distance back-references. Every syntactic element is recorded
// into the model output tree with the bit range it occupied.
package deflate

import (
	"encoding/hex"

	"github.com/cosnicolaou/deflate-parser/bitstream"
	"github.com/cosnicolaou/deflate-parser/huffman"
	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/parseerr"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

// ParseBlockHeader reads bfinal (1 bit) and btype (2 bits), RFC 1951
// §3.2.3.
func ParseBlockHeader(c *bitstream.Cursor) (model.DeflateBlockHeader, error) {
	bfinal, err := bitstream.PopBits[uint8](c, 1)
	if err != nil {
		return model.DeflateBlockHeader{}, err
	}
	btype, err := bitstream.PopBits[uint8](c, 2)
	if err != nil {
		return model.DeflateBlockHeader{}, err
	}
	return model.DeflateBlockHeader{BFinal: bfinal, BType: btype}, nil
}

// ParseStoredBlock decodes a BTYPE=00 block (RFC 1951 §3.2.4): align,
// read len/nlen, then copy len bytes verbatim into the window.
func ParseStoredBlock(c *bitstream.Cursor, w *window.Window, cfg settings.Settings) (*model.StoredBlock, error) {
	if err := c.Align(); err != nil {
		return nil, err
	}
	lenV, err := bitstream.PopLE[uint16](c)
	if err != nil {
		return nil, err
	}
	nlenV, err := bitstream.PopLE[uint16](c)
	if err != nil {
		return nil, err
	}
	lv, data, err := c.PopBytes(uint64(lenV.V), cfg.DataCapture)
	if err != nil {
		return nil, err
	}
	w.AppendBytes(data)
	sb := &model.StoredBlock{Len: lenV, Nlen: nlenV}
	if cfg.DataCapture {
		sb.Data = &lv
	}
	return sb, nil
}

// fixedLiteralTree and fixedDistanceTree build the synthetic tables of
// RFC 1951 §3.2.6: literal/length lengths 8 for [0,143], 9 for
// [144,255], 7 for [256,279], 8 for [280,287]; distance lengths all 5.
// Their Located code lengths carry a zero-width range at the block's
// bit-start, per the source's convention for synthetic fields.
func fixedLiteralTree(blockStart uint64) (*model.HuffmanTree[uint16], error) {
	zero := func(v uint8) bitstream.Located[uint8] {
		return bitstream.Located[uint8]{V: v, Start: blockStart, End: blockStart}
	}
	lens := make([]bitstream.Located[uint8], 288)
	for i := 0; i <= 143; i++ {
		lens[i] = zero(8)
	}
	for i := 144; i <= 255; i++ {
		lens[i] = zero(9)
	}
	for i := 256; i <= 279; i++ {
		lens[i] = zero(7)
	}
	for i := 280; i <= 287; i++ {
		lens[i] = zero(8)
	}
	alphabet := make([]uint16, 288)
	for i := range alphabet {
		alphabet[i] = uint16(i)
	}
	return huffman.BuildTree(huffman.BuildCodes(alphabet, lens))
}

func fixedDistanceTree(blockStart uint64) (*model.HuffmanTree[uint8], error) {
	lens := make([]bitstream.Located[uint8], 32)
	for i := range lens {
		lens[i] = bitstream.Located[uint8]{V: 5, Start: blockStart, End: blockStart}
	}
	alphabet := make([]uint8, 32)
	for i := range alphabet {
		alphabet[i] = uint8(i)
	}
	return huffman.BuildTree(huffman.BuildCodes(alphabet, lens))
}

// ParseFixedBlock decodes a BTYPE=01 block (RFC 1951 §3.2.6).
func ParseFixedBlock(c *bitstream.Cursor, w *window.Window, cfg settings.Settings) (*model.FixedBlock, error) {
	blockStart := c.Pos()
	litTree, err := fixedLiteralTree(blockStart)
	if err != nil {
		return nil, err
	}
	distTree, err := fixedDistanceTree(blockStart)
	if err != nil {
		return nil, err
	}
	tokens, err := parseTokens(c, w, litTree, distTree, cfg)
	if err != nil {
		return nil, err
	}
	return &model.FixedBlock{Tokens: tokens}, nil
}

// ParseDHT decodes a dynamic Huffman table (RFC 1951 §3.2.7): hlit,
// hdist, hclen, the code-length alphabet, and the run-length-encoded
// literal/length and distance code lengths. It is also the entry point
// for the Dht-only stream variant, which runs only this subparser.
func ParseDHT(c *bitstream.Cursor) (*model.DynamicHuffmanTable, error) {
	hlit, err := bitstream.PopBits[uint8](c, 5)
	if err != nil {
		return nil, err
	}
	if hlit.V > 29 {
		return nil, &parseerr.ParseError{Pos: hlit.Start, Msg: "HLIT > 29"}
	}
	hdist, err := bitstream.PopBits[uint8](c, 5)
	if err != nil {
		return nil, err
	}
	hclen, err := bitstream.PopBits[uint8](c, 4)
	if err != nil {
		return nil, err
	}

	n := int(hclen.V) + 4
	hclens := make([]bitstream.Located[uint8], n)
	for i := 0; i < n; i++ {
		v, err := bitstream.PopBits[uint8](c, 3)
		if err != nil {
			return nil, err
		}
		hclens[i] = v
	}

	clAlphabetLens := make([]bitstream.Located[uint8], 19)
	for i, v := range hclens {
		clAlphabetLens[CodeLengthOrder[i]] = v
	}
	clAlphabet := make([]uint8, 19)
	for i := range clAlphabet {
		clAlphabet[i] = uint8(i)
	}
	clCodes := huffman.BuildCodes(clAlphabet, clAlphabetLens)
	clTree, err := huffman.BuildTree(clCodes)
	if err != nil {
		return nil, err
	}

	hlitCount := int(hlit.V) + 257
	hdistCount := int(hdist.V) + 1
	total := hlitCount + hdistCount
	lens, err := parseCodeLengths(c, clTree, total)
	if err != nil {
		return nil, err
	}

	litLens := lens[:hlitCount]
	distLens := lens[hlitCount:]

	litAlphabet := make([]uint16, 286)
	for i := range litAlphabet {
		litAlphabet[i] = uint16(i)
	}
	litCodes := huffman.BuildCodes(litAlphabet, litLens)
	litTree, err := huffman.BuildTree(litCodes)
	if err != nil {
		return nil, err
	}

	distAlphabet := make([]uint8, 30)
	for i := range distAlphabet {
		distAlphabet[i] = uint8(i)
	}
	distCodes := huffman.BuildCodes(distAlphabet, distLens)
	distTree, err := huffman.BuildTree(distCodes)
	if err != nil {
		return nil, err
	}

	return &model.DynamicHuffmanTable{
		HLit: hlit, HDist: hdist, HCLen: hclen,
		HCLens: hclens, HCLensCodes: clCodes, HCLensTree: clTree,
		HLits: lens, HLitsCodes: litCodes, HLitsTree: litTree,
		HDistsCodes: distCodes, HDistsTree: distTree,
	}, nil
}

// parseCodeLengths implements the run-length rules of RFC 1951 §3.2.7:
// symbols 0-15 are literal code lengths, 16 repeats the previous length
// 3+read(2) times, 17 emits 3+read(3) zeros, 18 emits 11+read(7) zeros.
// Repeated entries share the origin symbol's bit range.
func parseCodeLengths(c *bitstream.Cursor, tree *model.HuffmanTree[uint8], n int) ([]bitstream.Located[uint8], error) {
	lens := make([]bitstream.Located[uint8], 0, n)
	for len(lens) < n {
		start := c.Pos()
		sym, err := huffman.Decode(c, tree)
		if err != nil {
			return nil, err
		}
		switch {
		case sym.V <= 15:
			lens = append(lens, bitstream.Located[uint8]{V: sym.V, Start: start, End: c.Pos()})
		case sym.V == 16:
			if len(lens) == 0 {
				return nil, &parseerr.ParseError{Pos: c.Pos(), Msg: "Repeat"}
			}
			last := lens[len(lens)-1]
			repeat, err := bitstream.PopBits[uint8](c, 2)
			if err != nil {
				return nil, err
			}
			for i := 0; i < 3+int(repeat.V); i++ {
				lens = append(lens, bitstream.Located[uint8]{V: last.V, Start: last.Start, End: repeat.End})
			}
		case sym.V == 17:
			repeat, err := bitstream.PopBits[uint8](c, 3)
			if err != nil {
				return nil, err
			}
			for i := 0; i < 3+int(repeat.V); i++ {
				lens = append(lens, bitstream.Located[uint8]{V: 0, Start: sym.Start, End: repeat.End})
			}
		case sym.V == 18:
			repeat, err := bitstream.PopBits[uint8](c, 7)
			if err != nil {
				return nil, err
			}
			for i := 0; i < 11+int(repeat.V); i++ {
				lens = append(lens, bitstream.Located[uint8]{V: 0, Start: sym.Start, End: repeat.End})
			}
		default:
			return nil, &parseerr.ParseError{Pos: start, Msg: "Code length"}
		}
	}
	if len(lens) != n {
		return nil, &parseerr.ParseError{Pos: c.Pos(), Msg: "Code lengths"}
	}
	return lens, nil
}

// ParseDynamicBlock decodes a BTYPE=10 block: a DynamicHuffmanTable
// followed by its token loop.
func ParseDynamicBlock(c *bitstream.Cursor, w *window.Window, cfg settings.Settings) (*model.DynamicBlock, error) {
	dht, err := ParseDHT(c)
	if err != nil {
		return nil, err
	}
	tokens, err := parseTokens(c, w, dht.HLitsTree, dht.HDistsTree, cfg)
	if err != nil {
		return nil, err
	}
	return &model.DynamicBlock{DHT: *dht, Tokens: tokens}, nil
}

// parseTokens is the token loop of RFC 1951 §3.2.5. It always decodes
// and applies every token to the window (literal bytes, back-reference
// copies) and advances plainPos; it only retains a Token record per
// symbol when cfg.DataCapture is set.
func parseTokens(c *bitstream.Cursor, w *window.Window, litTree *model.HuffmanTree[uint16], distTree *model.HuffmanTree[uint8], cfg settings.Settings) ([]model.Token, error) {
	var tokens []model.Token
	for {
		start := c.Pos()
		sym, err := huffman.Decode(c, litTree)
		if err != nil {
			return nil, err
		}
		tokenPlainPos := w.PlainPos()
		switch {
		case sym.V <= 255:
			b := byte(sym.V)
			w.AppendByte(b)
			if cfg.DataCapture {
				tokens = append(tokens, model.Token{
					Kind:    model.TokenLiteral,
					Literal: &model.LiteralToken{PlainPos: tokenPlainPos, Byte: b, Char: string(rune(b))},
				})
			}
		case sym.V == 256:
			if cfg.DataCapture {
				tokens = append(tokens, model.Token{Kind: model.TokenEob, Eob: &model.EobToken{PlainPos: tokenPlainPos}})
			}
			return tokens, nil
		case sym.V <= 285:
			idx := sym.V - 257
			extra, err := bitstream.PopBits[uint16](c, LiteralExtraBits[idx])
			if err != nil {
				return nil, err
			}
			length := LiteralBases[idx] + extra.V

			distSym, err := huffman.Decode(c, distTree)
			if err != nil {
				return nil, err
			}
			if distSym.V > 29 {
				return nil, &parseerr.ParseError{Pos: distSym.Start, Msg: "Distance extra bits"}
			}
			distExtra, err := bitstream.PopBits[uint16](c, DistanceExtraBits[distSym.V])
			if err != nil {
				return nil, err
			}
			distance := DistanceBases[distSym.V] + distExtra.V

			copied := w.AppendMatch(int(distance), int(length))
			if cfg.DataCapture {
				tokens = append(tokens, model.Token{
					Kind: model.TokenWindow,
					Window: &model.WindowToken{
						PlainPos:      tokenPlainPos,
						Length:        bitstream.Located[uint16]{V: sym.V, Start: sym.Start, End: sym.End},
						LengthExtra:   extra,
						LengthValue:   length,
						Distance:      distSym,
						DistanceExtra: distExtra,
						DistanceValue: distance,
						Hex:           hex.EncodeToString(copied),
					},
				})
			}
		default:
			return nil, &parseerr.ParseError{Pos: start, Msg: "Literal"}
		}
	}
}

// ParseStream runs the block loop: parse blocks until bfinal==1, then
// align to the next byte boundary. Any failure returns the partial
// stream built so far alongside the error, so that already-parsed
// blocks remain inspectable.
func ParseStream(c *bitstream.Cursor, w *window.Window, cfg settings.Settings) (*model.DeflateStream, error) {
	stream := &model.DeflateStream{}
	for {
		header, err := ParseBlockHeader(c)
		if err != nil {
			return stream, err
		}
		block := model.DeflateBlock{Header: header, PlainStart: w.PlainPos()}

		var blockErr error
		switch header.BType.V {
		case 0:
			block.Stored, blockErr = ParseStoredBlock(c, w, cfg)
		case 1:
			block.Fixed, blockErr = ParseFixedBlock(c, w, cfg)
		case 2:
			block.Dynamic, blockErr = ParseDynamicBlock(c, w, cfg)
		default:
			blockErr = &parseerr.ParseError{Pos: header.BType.Start, Msg: "BTYPE=3"}
		}
		if blockErr != nil {
			stream.Blocks = append(stream.Blocks, block)
			return stream, blockErr
		}
		block.PlainEnd = w.PlainPos()
		block.End = c.Pos()
		stream.Blocks = append(stream.Blocks, block)

		if header.BFinal.V == 1 {
			if err := c.Align(); err != nil {
				return stream, err
			}
			return stream, nil
		}
	}
}
