// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bitstream implements a bit-precise cursor over a byte buffer,
// the foundation the DEFLATE, gzip, and zlib decoders in this module are
// built on. Every read primitive returns a Located[T] carrying the value
// plus the half-open bit range [Start, End) it was read from, so that
// the parser above can annotate every syntactic element with its
// position in the input.
package bitstream

import (
	"encoding/hex"
	"unicode/utf8"
	"unsafe"

	"github.com/cosnicolaou/deflate-parser/parseerr"
)

// Unsigned constrains the scalar types PeekLE/PopLE/PeekBits/PopBits can
// produce.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32
}

// Located wraps a parsed value with the half-open bit range it occupied
// in the input.
type Located[T any] struct {
	V     T      `json:"v"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Cursor is a mutable view over a byte buffer exposing bit-level read
// primitives with absolute bit positions. pos is monotonically
// non-decreasing.
type Cursor struct {
	buf []byte
	pos uint64
	end uint64
}

// New returns a Cursor over buf, starting at bitOffset.
func New(buf []byte, bitOffset uint64) *Cursor {
	return &Cursor{buf: buf, pos: bitOffset, end: uint64(len(buf)) * 8}
}

// Pos returns the next bit to be read.
func (c *Cursor) Pos() uint64 { return c.pos }

// End returns 8*len(buffer).
func (c *Cursor) End() uint64 { return c.end }

func (c *Cursor) require(n uint64) error {
	if c.pos+n > c.end {
		return &parseerr.ParseError{Pos: c.pos, Msg: "EOF"}
	}
	return nil
}

// ByteIndex returns pos/8, failing with "Unaligned" unless pos%8 == 0.
func (c *Cursor) ByteIndex() (uint64, error) {
	if c.pos%8 != 0 {
		return 0, &parseerr.ParseError{Pos: c.pos, Msg: "Unaligned"}
	}
	return c.pos / 8, nil
}

// Advance moves pos forward by n bits, failing with "EOF" if that would
// cross end.
func (c *Cursor) Advance(n uint64) error {
	if err := c.require(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// PeekLE reads T as little-endian without advancing pos. The recorded
// range is always 8 bits wide starting at pos, regardless of T's width;
// this is a deliberate quirk inherited from the source implementation
// (see design notes) and must be preserved for output compatibility.
func PeekLE[T Unsigned](c *Cursor) (Located[T], error) {
	var zero T
	nbytes := uint64(unsafe.Sizeof(zero))
	if err := c.require(nbytes * 8); err != nil {
		return Located[T]{}, err
	}
	idx, err := c.ByteIndex()
	if err != nil {
		return Located[T]{}, err
	}
	var v T
	for i := uint64(0); i < nbytes; i++ {
		v |= T(c.buf[idx+i]) << (8 * i)
	}
	return Located[T]{V: v, Start: c.pos, End: c.pos + 8}, nil
}

// PopLE is PeekLE followed by advancing pos by 8*sizeof(T).
func PopLE[T Unsigned](c *Cursor) (Located[T], error) {
	lv, err := PeekLE[T](c)
	if err != nil {
		return Located[T]{}, err
	}
	var zero T
	c.pos += 8 * uint64(unsafe.Sizeof(zero))
	return lv, nil
}

// PeekBits reads n <= 8*sizeof(T) bits starting at pos without advancing
// it. The least-significant bit of each byte is read first; bit i of
// the result is set from that ordering.
func PeekBits[T Unsigned](c *Cursor, n uint) (Located[T], error) {
	if err := c.require(uint64(n)); err != nil {
		return Located[T]{}, err
	}
	var v T
	for i := uint(0); i < n; i++ {
		bitPos := c.pos + uint64(i)
		b := c.buf[bitPos/8]
		bit := (b >> (bitPos % 8)) & 1
		v |= T(bit) << i
	}
	return Located[T]{V: v, Start: c.pos, End: c.pos + uint64(n)}, nil
}

// PopBits is PeekBits followed by advancing pos by n.
func PopBits[T Unsigned](c *Cursor, n uint) (Located[T], error) {
	lv, err := PeekBits[T](c, n)
	if err != nil {
		return Located[T]{}, err
	}
	c.pos += uint64(n)
	return lv, nil
}

// Align advances pos to the next byte boundary. It is a zero-width
// no-op if already aligned, and fails if doing so would cross end.
func (c *Cursor) Align() error {
	n := (8 - (c.pos & 7)) & 7
	return c.Advance(n)
}

// PopBytes requires byte alignment, then reads n raw bytes and advances
// pos by 8n. The raw bytes are always returned; a hex-encoded Located
// value is only populated when captureData is true.
func (c *Cursor) PopBytes(n uint64, captureData bool) (Located[string], []byte, error) {
	idx, err := c.ByteIndex()
	if err != nil {
		return Located[string]{}, nil, err
	}
	if err := c.require(n * 8); err != nil {
		return Located[string]{}, nil, err
	}
	data := c.buf[idx : idx+n]
	lv := Located[string]{Start: c.pos, End: c.pos + n*8}
	if captureData {
		lv.V = hex.EncodeToString(data)
	}
	c.pos += n * 8
	return lv, data, nil
}

// PopString is byte-aligned; it reads bytes up to and including a NUL,
// recording the preceding bytes as a UTF-8 string. It fails on a UTF-8
// error or EOF before a NUL is found.
func (c *Cursor) PopString() (Located[string], error) {
	idx, err := c.ByteIndex()
	if err != nil {
		return Located[string]{}, err
	}
	start := c.pos
	end := idx
	for {
		if end >= uint64(len(c.buf)) {
			return Located[string]{}, &parseerr.ParseError{Pos: c.pos, Msg: "EOF"}
		}
		if c.buf[end] == 0 {
			break
		}
		end++
	}
	raw := c.buf[idx:end]
	if !utf8.Valid(raw) {
		return Located[string]{}, &parseerr.UTF8Error{Pos: start}
	}
	c.pos = (end + 1) * 8
	return Located[string]{V: string(raw), Start: start, End: c.pos}, nil
}
