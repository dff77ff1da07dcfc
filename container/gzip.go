// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package container decodes the two common framings wrapped around a
// DEFLATE stream: the gzip file format (RFC 1952) and the zlib data
// format (RFC 1950). Both delegate the compressed payload between their
// header and trailer to the deflate package.
package container

import (
	"github.com/cosnicolaou/deflate-parser/bitstream"
	"github.com/cosnicolaou/deflate-parser/deflate"
	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/parseerr"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

// gzipMagic is the little-endian 16-bit value of the two gzip magic
// bytes 0x1f, 0x8b.
const gzipMagic = 0x8b1f

const gzipFlagName = 0x08

// ParseGzip reads an RFC 1952 member: the fixed 10-byte header, an
// optional NUL-terminated file name when FNAME is set, a DEFLATE
// sub-stream, and the CRC32/ISIZE trailer. Any failure, including a
// failure inside the DEFLATE sub-stream, returns the GzipStream built
// so far.
func ParseGzip(c *bitstream.Cursor, w *window.Window, cfg settings.Settings) (*model.GzipStream, error) {
	gz := &model.GzipStream{}

	magic, err := bitstream.PeekLE[uint16](c)
	if err != nil {
		return gz, err
	}
	if magic.V != gzipMagic {
		return gz, &parseerr.ParseError{Pos: magic.Start, Msg: "Stream type"}
	}
	if err := c.Advance(16); err != nil {
		return gz, err
	}
	gz.Magic = magic

	if gz.Method, err = bitstream.PopLE[uint8](c); err != nil {
		return gz, err
	}
	if gz.Flags, err = bitstream.PopLE[uint8](c); err != nil {
		return gz, err
	}
	if gz.Mtime, err = bitstream.PopLE[uint32](c); err != nil {
		return gz, err
	}
	if gz.Xflags, err = bitstream.PopLE[uint8](c); err != nil {
		return gz, err
	}
	if gz.OS, err = bitstream.PopLE[uint8](c); err != nil {
		return gz, err
	}

	if gz.Flags.V&gzipFlagName != 0 {
		name, err := c.PopString()
		if err != nil {
			return gz, err
		}
		gz.Name = &name
	}

	deflateStream, err := deflate.ParseStream(c, w, cfg)
	gz.Deflate = deflateStream
	if err != nil {
		return gz, err
	}

	if err := c.Align(); err != nil {
		return gz, err
	}
	if gz.Checksum, err = bitstream.PopLE[uint32](c); err != nil {
		return gz, err
	}
	if gz.Isize, err = bitstream.PopLE[uint32](c); err != nil {
		return gz, err
	}
	return gz, nil
}
