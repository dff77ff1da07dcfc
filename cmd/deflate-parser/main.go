// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"

	"cloudeng.io/cmdutil/subcmd"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
)

type CommonFlags struct {
	Kind        string `subcmd:"kind,gzip,'stream kind to assume: gzip, zlib, raw, or dht'"`
	BitOffset   uint64 `subcmd:"bit-offset,0,'bit position in the input to start parsing from'"`
	DataCapture bool   `subcmd:"data,true,'retain token sequences and copied bytes in the output'"`
	Dictionary  string `subcmd:"dictionary,,'preload the window from this file before parsing (zlib FDICT)'"`
	Verbose     bool   `subcmd:"verbose,false,verbose debug/trace information"`
}

type inspectFlags struct {
	CommonFlags
	Output      string `subcmd:"output,,'write JSON output here, omit for stdout'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar while reading large inputs"`
}

var cmdSet *subcmd.CommandSet

func init() {
	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&inspectFlags{}, nil, nil),
		inspect, subcmd.ExactlyNumArguments(1))
	inspectCmd.Document(`parse a DEFLATE, gzip, or zlib stream and print its structure as JSON. Input may be local, on S3, or a URL.`)

	cmdSet = subcmd.NewCommandSet(inspectCmd)
	cmdSet.Document(`inspect DEFLATE, gzip, and zlib streams, recording every syntactic element and the bit range it occupied.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body,
			resp.ContentLength,
			func(context.Context) error {
				resp.Body.Close()
				return nil
			},
			nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

func readAll(ctx context.Context, name string) ([]byte, error) {
	rd, _, cleanup, err := openFileOrURL(ctx, name)
	if err != nil {
		return nil, err
	}
	defer cleanup(ctx)
	return ioutil.ReadAll(rd)
}
