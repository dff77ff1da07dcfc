// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package parser is the single entry point this module exposes: given
// raw bytes, an optional pre-selected stream variant, and settings, it
// dispatches to the DEFLATE, gzip, or zlib decoder and returns the
// populated output tree. It owns nothing the CLI front-end, serializer,
// or extract utility need beyond this one call.
package parser

import (
	"github.com/cosnicolaou/deflate-parser/bitstream"
	"github.com/cosnicolaou/deflate-parser/container"
	"github.com/cosnicolaou/deflate-parser/deflate"
	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/parseerr"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

// Parse decodes buf into a CompressedStream. kind selects which framing
// to attempt; any value other than KindRawDeflate, KindDhtOnly or
// KindZlib selects gzip framing. The zero value of model.StreamKind is
// KindRawDeflate, so callers wanting gzip pass KindGzip. w may be pre-loaded with a
// dictionary via window.AppendDictionaryFromFile before calling, for
// zlib streams using FDICT. On any failure the CompressedStream built
// so far is returned alongside the error so that partial output remains
// inspectable.
func Parse(buf []byte, kind model.StreamKind, w *window.Window, cfg settings.Settings) (*model.CompressedStream, error) {
	c := bitstream.New(buf, cfg.BitOffset)
	stream := &model.CompressedStream{Kind: kind}

	var err error
	switch kind {
	case model.KindRawDeflate:
		stream.Raw, err = deflate.ParseStream(c, w, cfg)
	case model.KindDhtOnly:
		stream.Dht, err = deflate.ParseDHT(c)
	case model.KindZlib:
		stream.Zlib, err = container.ParseZlib(c, w, cfg)
	default:
		stream.Kind = model.KindGzip
		stream.Gzip, err = container.ParseGzip(c, w, cfg)
	}
	if err != nil {
		return stream, err
	}

	if c.Pos() != c.End() {
		return stream, &parseerr.ParseError{Pos: c.Pos(), Msg: garbageMsg(c.End())}
	}
	return stream, nil
}

func garbageMsg(end uint64) string {
	return "Garbage (end=" + itoa(end) + ")"
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
