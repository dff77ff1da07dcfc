// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command extract reconstructs the decompressed byte stream of a
// DEFLATE/gzip/zlib input by concatenating, in order, the literal
// bytes and copied back-reference bytes recorded in a parse, without
// retaining the full inspection tree in memory any longer than needed.
package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/spf13/cobra"

	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/parser"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

var (
	kind       string
	bitOffset  uint64
	dictionary string
	output     string
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "extract <input>",
		Short: "reconstruct the decompressed payload of a DEFLATE/gzip/zlib stream",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	root.Flags().StringVar(&kind, "kind", "gzip", "stream kind to assume: gzip, zlib, or raw")
	root.Flags().Uint64Var(&bitOffset, "bit-offset", 0, "bit position in the input to start parsing from")
	root.Flags().StringVar(&dictionary, "dictionary", "", "preload the window from this file before parsing (zlib FDICT)")
	root.Flags().StringVar(&output, "output", "", "output file or s3 path, omit for stdout")
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func streamKind(s string) model.StreamKind {
	switch s {
	case "raw":
		return model.KindRawDeflate
	case "zlib":
		return model.KindZlib
	default:
		return model.KindGzip
	}
}

func openInput(ctx context.Context, name string) ([]byte, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return ioutil.ReadAll(resp.Body)
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close(ctx)
	return ioutil.ReadAll(f.Reader(ctx))
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	buf, err := openInput(ctx, args[0])
	if err != nil {
		return err
	}

	w := window.New()
	if len(dictionary) > 0 {
		dict, err := openInput(ctx, dictionary)
		if err != nil {
			return err
		}
		w.AppendDictionaryFromFile(dict)
	}

	cfg := settings.Settings{BitOffset: bitOffset, DataCapture: true}
	stream, parseErr := parser.Parse(buf, streamKind(kind), w, cfg)

	out, err := createOutput(ctx, output)
	if err != nil {
		return err
	}
	defer out.close(ctx)

	if writeErr := writePlaintext(out.w, stream); writeErr != nil {
		return writeErr
	}
	return parseErr
}

type outputSink struct {
	w     io.Writer
	close func(context.Context) error
}

func createOutput(ctx context.Context, name string) (*outputSink, error) {
	if len(name) == 0 {
		return &outputSink{w: os.Stdout, close: func(context.Context) error { return nil }}, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &outputSink{w: f.Writer(ctx), close: f.Close}, nil
}

// writePlaintext walks a CompressedStream's DEFLATE sub-stream and
// writes every literal byte, copied match, and stored-block payload in
// order, reconstructing the decompressed payload.
func writePlaintext(w io.Writer, stream *model.CompressedStream) error {
	var deflate *model.DeflateStream
	switch stream.Kind {
	case model.KindGzip:
		if stream.Gzip != nil {
			deflate = stream.Gzip.Deflate
		}
	case model.KindZlib:
		if stream.Zlib != nil {
			deflate = stream.Zlib.Deflate
		}
	case model.KindRawDeflate:
		deflate = stream.Raw
	}
	if deflate == nil {
		return nil
	}
	for _, block := range deflate.Blocks {
		switch {
		case block.Stored != nil && block.Stored.Data != nil:
			raw, err := hexDecode(block.Stored.Data.V)
			if err != nil {
				return err
			}
			if _, err := w.Write(raw); err != nil {
				return err
			}
		case block.Fixed != nil:
			if err := writeTokens(w, block.Fixed.Tokens); err != nil {
				return err
			}
		case block.Dynamic != nil:
			if err := writeTokens(w, block.Dynamic.Tokens); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeTokens(w io.Writer, tokens []model.Token) error {
	for _, tok := range tokens {
		switch tok.Kind {
		case model.TokenLiteral:
			if _, err := w.Write([]byte{tok.Literal.Byte}); err != nil {
				return err
			}
		case model.TokenWindow:
			raw, err := hexDecode(tok.Window.Hex)
			if err != nil {
				return err
			}
			if _, err := w.Write(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexNibble(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, fmt.Errorf("invalid hex digit %q", c)
}
