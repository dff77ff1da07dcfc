// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.
package parser

import (
	"testing"

	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

// helloGzip is the canonical 26-byte gzip encoding of "hello\n".
var helloGzip = []byte{
	0x1f, 0x8b, 0x08, 0x00, 0xd1, 0x9f, 0x38, 0x5c, 0x02, 0x03,
	0xcb, 0x48, 0xcd, 0xc9, 0xc9, 0xe7, 0x02, 0x00, 0x20, 0x30,
	0x3a, 0x36, 0x06, 0x00, 0x00, 0x00,
}

func plaintextOf(t *testing.T, s *model.DeflateStream) []byte {
	t.Helper()
	var out []byte
	for _, b := range s.Blocks {
		switch {
		case b.Fixed != nil:
			out = append(out, tokenBytes(t, b.Fixed.Tokens)...)
		case b.Dynamic != nil:
			out = append(out, tokenBytes(t, b.Dynamic.Tokens)...)
		case b.Stored != nil:
			raw, err := hexDecode(b.Stored.Data.V)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, raw...)
		}
	}
	return out
}

func tokenBytes(t *testing.T, tokens []model.Token) []byte {
	t.Helper()
	var out []byte
	for _, tok := range tokens {
		switch tok.Kind {
		case model.TokenLiteral:
			out = append(out, tok.Literal.Byte)
		case model.TokenWindow:
			raw, err := hexDecode(tok.Window.Hex)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, raw...)
		}
	}
	return out
}

func hexDecode(s string) ([]byte, error) {
	out := make([]byte, len(s)/2)
	for i := range out {
		hi := hexNibble(s[2*i])
		lo := hexNibble(s[2*i+1])
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func TestParseGzipHello(t *testing.T) {
	w := window.New()
	stream, err := Parse(helloGzip, model.KindGzip, w, settings.Settings{DataCapture: true})
	if err != nil {
		t.Fatal(err)
	}
	gz := stream.Gzip
	if gz == nil {
		t.Fatal("expected a gzip stream")
	}
	if gz.Magic.V != 0x8b1f {
		t.Errorf("got magic 0x%x, want 0x8b1f", gz.Magic.V)
	}
	if gz.Method.V != 8 {
		t.Errorf("got method %d, want 8", gz.Method.V)
	}
	if gz.Flags.V != 0 {
		t.Errorf("got flags %d, want 0", gz.Flags.V)
	}
	if gz.Mtime.V != 0x5c389fd1 {
		t.Errorf("got mtime 0x%x, want 0x5c389fd1", gz.Mtime.V)
	}
	if gz.Xflags.V != 2 {
		t.Errorf("got xflags %d, want 2", gz.Xflags.V)
	}
	if gz.OS.V != 3 {
		t.Errorf("got os %d, want 3", gz.OS.V)
	}
	if gz.Checksum.V != 0x363a3020 {
		t.Errorf("got crc32 0x%x, want 0x363a3020", gz.Checksum.V)
	}
	if gz.Isize.V != 6 {
		t.Errorf("got isize %d, want 6", gz.Isize.V)
	}
	if len(gz.Deflate.Blocks) != 1 || gz.Deflate.Blocks[0].Fixed == nil {
		t.Fatalf("expected a single fixed block, got %+v", gz.Deflate.Blocks)
	}
	if got, want := string(plaintextOf(t, gz.Deflate)), "hello\n"; got != want {
		t.Errorf("got plaintext %q, want %q", got, want)
	}
}

func TestParseGzipHelloTruncated(t *testing.T) {
	// S6: truncating by one byte must fail, not succeed with a short
	// result.
	w := window.New()
	_, err := Parse(helloGzip[:len(helloGzip)-1], model.KindGzip, w, settings.Settings{DataCapture: true})
	if err == nil {
		t.Fatal("expected an error from a truncated stream")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	bad := append([]byte{}, helloGzip...)
	bad[0] = 0x00
	w := window.New()
	if _, err := Parse(bad, model.KindGzip, w, settings.Settings{}); err == nil {
		t.Fatal("expected a 'Stream type' error for a bad magic")
	}
}
