// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package settings carries the options that control a parse: where in
// the bitstream to start, and whether to retain payload bytes in the
// output tree or only structural metadata.
package settings

// Settings controls how Parse behaves.
type Settings struct {
	// BitOffset is the starting position, in bits, within the input.
	// It allows skipping a wrapper the parser does not understand.
	BitOffset uint64

	// DataCapture, when true, retains stored-block payloads, token
	// sequences, and copied-window bytes in the output. When false only
	// structural metadata (block headers, Huffman tables, bit ranges) is
	// retained.
	DataCapture bool
}
