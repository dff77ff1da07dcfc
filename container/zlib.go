// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package container

import (
	"github.com/cosnicolaou/deflate-parser/bitstream"
	"github.com/cosnicolaou/deflate-parser/deflate"
	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

const zlibFlagDict = 0x20

// ParseZlib reads an RFC 1950 stream: the 2-byte cmf/flg header, an
// optional 4-byte dictionary id when FDICT is set, a DEFLATE
// sub-stream, and the 4-byte Adler-32 trailer. The caller is
// responsible for preloading w with the matching dictionary before
// calling, via window.AppendDictionaryFromFile, when FDICT is expected.
func ParseZlib(c *bitstream.Cursor, w *window.Window, cfg settings.Settings) (*model.ZlibStream, error) {
	zl := &model.ZlibStream{}
	var err error
	if zl.CMF, err = bitstream.PopLE[uint8](c); err != nil {
		return zl, err
	}
	if zl.FLG, err = bitstream.PopLE[uint8](c); err != nil {
		return zl, err
	}
	if zl.FLG.V&zlibFlagDict != 0 {
		dictID, err := bitstream.PopLE[uint32](c)
		if err != nil {
			return zl, err
		}
		zl.DictID = &dictID
	}

	deflateStream, err := deflate.ParseStream(c, w, cfg)
	zl.Deflate = deflateStream
	if err != nil {
		return zl, err
	}

	if err := c.Align(); err != nil {
		return zl, err
	}
	if zl.Adler32, err = bitstream.PopLE[uint32](c); err != nil {
		return zl, err
	}
	return zl, nil
}
