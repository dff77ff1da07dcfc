// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"cloudeng.io/cmdutil"
	"cloudeng.io/errors"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/cosnicolaou/deflate-parser/model"
	"github.com/cosnicolaou/deflate-parser/parser"
	"github.com/cosnicolaou/deflate-parser/settings"
	"github.com/cosnicolaou/deflate-parser/window"
)

func kindFromFlag(s string) model.StreamKind {
	switch s {
	case "raw":
		return model.KindRawDeflate
	case "dht":
		return model.KindDhtOnly
	case "zlib":
		return model.KindZlib
	default:
		return model.KindGzip
	}
}

// readWithProgress reads all of rd into memory, driving a progress bar
// on stderr against size when requested and size is known. When stderr
// is an interactive terminal the empty bar is rendered before reading
// starts.
func readWithProgress(rd io.Reader, size int64, showBar bool) ([]byte, error) {
	if !showBar || size <= 0 {
		return ioutil.ReadAll(rd)
	}
	isTTY := terminal.IsTerminal(int(os.Stderr.Fd()))
	barWr := os.Stderr
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(barWr),
		progressbar.OptionSetPredictTime(true))
	if isTTY {
		bar.RenderBlank()
	}
	tee := io.TeeReader(rd, bar)
	buf, err := ioutil.ReadAll(tee)
	fmt.Fprintln(barWr)
	return buf, err
}

func inspect(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*inspectFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	errs := &errors.M{}

	rd, size, readerCleanup, err := openFileOrURL(ctx, args[0])
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	buf, err := readWithProgress(rd, size, cl.ProgressBar)
	if err != nil {
		return err
	}

	w := window.New()
	if len(cl.Dictionary) > 0 {
		dict, err := readAll(ctx, cl.Dictionary)
		if err != nil {
			return err
		}
		w.AppendDictionaryFromFile(dict)
	}

	cfg := settings.Settings{BitOffset: cl.BitOffset, DataCapture: cl.DataCapture}
	stream, parseErr := parser.Parse(buf, kindFromFlag(cl.Kind), w, cfg)
	// parseErr is deliberately not returned immediately: the partial
	// output tree built so far is still written out, matching the
	// core's partial-output-on-failure contract.
	errs.Append(parseErr)

	out, writerCleanup, err := createFile(ctx, cl.Output)
	if err != nil {
		errs.Append(err)
		return errs.Err()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	errs.Append(enc.Encode(stream))
	errs.Append(writerCleanup(ctx))

	return errs.Err()
}
