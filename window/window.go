// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package window implements the 64 KiB sliding history DEFLATE
// back-references are resolved against. It is a local working buffer
// for a single parse call, not a shared cache.
package window

// Size is the capacity of the ring buffer. RFC 1951 only requires
// addressing 32 KiB of history; this implementation uses 64 KiB, as
// the source does, purely for convenience.
const Size = 65536

// Window is a 65,536-byte circular buffer tracking how many logical
// bytes of plaintext have been produced so far.
type Window struct {
	buf      [Size]byte
	offset   int
	length   int
	plainPos uint64
}

// New returns an empty Window.
func New() *Window {
	return &Window{}
}

// PlainPos returns the total number of bytes appended since creation,
// excluding any dictionary preload (see AppendDictionaryFromFile).
func (w *Window) PlainPos() uint64 {
	return w.plainPos
}

// AppendByte writes b at (offset+length) mod Size, growing length while
// it is below capacity and otherwise advancing offset. plainPos always
// increments.
func (w *Window) AppendByte(b byte) {
	pos := (w.offset + w.length) % Size
	w.buf[pos] = b
	if w.length < Size {
		w.length++
	} else {
		w.offset = (w.offset + 1) % Size
	}
	w.plainPos++
}

// AppendBytes calls AppendByte for each element of data.
func (w *Window) AppendBytes(data []byte) {
	for _, b := range data {
		w.AppendByte(b)
	}
}

// AppendMatch produces a fresh length-byte slice by reading from
// position (offset+length-distance) mod Size while simultaneously
// appending each byte, so self-overlapping runs (length > distance, as
// required by RLE-style LZ77 matches) are resolved correctly: a
// batch copy from the buffer would read stale bytes that later bytes
// of the same match are supposed to have just written.
func (w *Window) AppendMatch(distance, length int) []byte {
	out := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		srcPos := ((w.offset+w.length-distance)%Size + Size) % Size
		b := w.buf[srcPos]
		w.AppendByte(b)
		out = append(out, b)
	}
	return out
}

// AppendDictionaryFromFile appends the dictionary bytes and then
// decrements plainPos by that many bytes so that the dictionary does
// not count toward plaintext position: external positions remain
// zero-based in the decompressed output.
func (w *Window) AppendDictionaryFromFile(data []byte) {
	w.AppendBytes(data)
	w.plainPos -= uint64(len(data))
}
