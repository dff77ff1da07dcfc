// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package deflate

import (
	"testing"

	"github.com/cosnicolaou/deflate-parser/bitstream"
	"github.com/cosnicolaou/deflate-parser/huffman"
	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

// packLSB packs bits (each 0 or 1) into a byte slice least-significant-
// bit-first within each byte, the order PopBits reads a real stream in.
func packLSB(bits ...int) []byte {
	nbytes := (len(bits) + 7) / 8
	buf := make([]byte, nbytes)
	for i, bit := range bits {
		if bit != 0 {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	return buf
}

// msbBits expands a canonical Huffman code (logically MSB-first) into
// individual bits in the order huffman.Decode consumes them: one bit at
// a time, most-significant first.
func msbBits(code uint16, length int) []int {
	out := make([]int, length)
	for i := 0; i < length; i++ {
		out[i] = int((code >> (length - 1 - i)) & 1)
	}
	return out
}

func fixedLiteralCode(t *testing.T, symbol uint16) (uint16, int) {
	t.Helper()
	alphabet := make([]uint16, 288)
	for i := range alphabet {
		alphabet[i] = uint16(i)
	}
	lens := make([]bitstream.Located[uint8], 288)
	for i := 0; i <= 143; i++ {
		lens[i] = bitstream.Located[uint8]{V: 8}
	}
	for i := 144; i <= 255; i++ {
		lens[i] = bitstream.Located[uint8]{V: 9}
	}
	for i := 256; i <= 279; i++ {
		lens[i] = bitstream.Located[uint8]{V: 7}
	}
	for i := 280; i <= 287; i++ {
		lens[i] = bitstream.Located[uint8]{V: 8}
	}
	codes := huffman.BuildCodes(alphabet, lens)
	for _, c := range codes {
		if c.Symbol == symbol {
			return c.Code, int(c.Len.V)
		}
	}
	t.Fatalf("symbol %d not found in fixed literal table", symbol)
	return 0, 0
}

func TestParseStoredBlock(t *testing.T) {
	// bfinal=1, btype=00 (3 header bits, LSB-first), then align, then
	// len=3, nlen=^3, then the 3 literal bytes "abc".
	buf := packLSB(1, 0, 0)
	buf = append(buf, 3, 0, ^byte(3), 0xff, 'a', 'b', 'c')
	cur := bitstream.New(buf, 0)
	w := window.New()
	stream, err := ParseStream(cur, w, settings.Settings{DataCapture: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(stream.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(stream.Blocks))
	}
	sb := stream.Blocks[0].Stored
	if sb == nil {
		t.Fatal("expected a stored block")
	}
	if sb.Len.V != 3 {
		t.Errorf("got len %d, want 3", sb.Len.V)
	}
	if got, want := sb.Data.V, "616263"; got != want {
		t.Errorf("got data %q, want %q", got, want)
	}
	if stream.Blocks[0].PlainEnd != 3 {
		t.Errorf("got plain end %d, want 3", stream.Blocks[0].PlainEnd)
	}
}

func TestParseFixedBlockLiteralAndEob(t *testing.T) {
	aCode, aLen := fixedLiteralCode(t, 65)  // 'A'
	eobCode, eobLen := fixedLiteralCode(t, 256)

	var bits []int
	bits = append(bits, 1, 1, 0) // bfinal=1, btype=01
	bits = append(bits, msbBits(aCode, aLen)...)
	bits = append(bits, msbBits(eobCode, eobLen)...)
	buf := packLSB(bits...)

	cur := bitstream.New(buf, 0)
	w := window.New()
	stream, err := ParseStream(cur, w, settings.Settings{DataCapture: true})
	if err != nil {
		t.Fatal(err)
	}
	fb := stream.Blocks[0].Fixed
	if fb == nil {
		t.Fatal("expected a fixed block")
	}
	if len(fb.Tokens) != 2 {
		t.Fatalf("got %d tokens, want 2 (literal + eob)", len(fb.Tokens))
	}
	if fb.Tokens[0].Literal == nil || fb.Tokens[0].Literal.Byte != 'A' {
		t.Errorf("first token is not literal 'A': %+v", fb.Tokens[0])
	}
	if fb.Tokens[1].Eob == nil {
		t.Errorf("second token is not eob: %+v", fb.Tokens[1])
	}
}

func TestParseDHTRejectsOversizedHLit(t *testing.T) {
	// hlit=30 (encodes as 30, which is > 29) is the error case named by
	// the RFC 1951 §3.2.7 table bound.
	buf := packLSB(append(bitsOfUint(30, 5), bitsOfUint(0, 5+4)...)...)
	cur := bitstream.New(buf, 0)
	if _, err := ParseDHT(cur); err == nil {
		t.Fatal("expected an error for HLIT > 29")
	}
}

func bitsOfUint(v uint, n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int((v >> i) & 1)
	}
	return out
}

func TestParseStreamRejectsBType3(t *testing.T) {
	buf := packLSB(1, 1, 1) // bfinal=1, btype=11
	cur := bitstream.New(buf, 0)
	w := window.New()
	_, err := ParseStream(cur, w, settings.Settings{})
	if err == nil {
		t.Fatal("expected an error for BTYPE=3")
	}
}

func TestParseCodeLengthsRepeatPrevious(t *testing.T) {
	// A code-length tree where symbol 1 has a 1-bit code "0" and symbol
	// 16 (repeat) has a 1-bit code "1": length 1 for the first entry,
	// then a repeat-previous of 3 (minimum) more entries.
	codes := []model.HuffmanCode[uint8]{
		{Symbol: 1, Code: 0, Len: bitstream.Located[uint8]{V: 1}},
		{Symbol: 16, Code: 1, Len: bitstream.Located[uint8]{V: 1}},
	}
	tree, err := huffman.BuildTree(codes)
	if err != nil {
		t.Fatal(err)
	}
	// Decode symbol 1 (a literal code length of 1), then symbol 16
	// (repeat-previous) with its 2-bit repeat count set to 0, the
	// minimum repeat of 3. All four resulting lengths equal 1.
	bits := []int{0, 1, 0, 0}
	cur := bitstream.New(packLSB(bits...), 0)
	lens, err := parseCodeLengths(cur, tree, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(lens) != 4 {
		t.Fatalf("got %d lengths, want 4", len(lens))
	}
	for _, l := range lens {
		if l.V != 1 {
			t.Errorf("got length %d, want 1 (repeated from the preceding entry)", l.V)
		}
	}
}
