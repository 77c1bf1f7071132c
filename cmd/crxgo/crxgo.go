// Command-line tool for Hatanaka compression and decompression of RINEX
// observation files.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/mholt/archiver/v3"
	"github.com/urfave/cli/v2"

	"github.com/gnsskit/gocrinex/pkg/crinex"
	"github.com/gnsskit/gocrinex/pkg/rinex"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "crxgo",
		Usage:   "compress and decompress Hatanaka Compact RINEX observation files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "outdir",
				Aliases: []string{"d"},
				Usage:   "write output files to `DIR` instead of the input directory",
			},
			&cli.BoolFlag{
				Name:    "stdout",
				Aliases: []string{"c"},
				Usage:   "write the result to stdout",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "dec",
				Usage:     "Decompress Compact RINEX files to plain RINEX",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recover",
						Usage: "skip corrupt epochs instead of failing",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return cli.Exit("dec needs at least one input file", 1)
					}
					for _, fil := range c.Args().Slice() {
						if err := decompressFile(c, fil); err != nil {
							return cli.Exit(err.Error(), 1)
						}
					}
					return nil
				},
			},
			{
				Name:      "enc",
				Usage:     "Compress plain RINEX observation files to Compact RINEX",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "order",
						Usage: "maximum differencing `ORDER`",
						Value: 3,
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return cli.Exit("enc needs at least one input file", 1)
					}
					for _, fil := range c.Args().Slice() {
						if err := compressFile(c, fil); err != nil {
							return cli.Exit(err.Error(), 1)
						}
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openInput opens the input file for reading, transparently decompressing
// gzipped files and reading the first matching member of zip archives.
func openInput(path string) (io.ReadCloser, string, error) {
	name := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("open %s: %v", path, err)
		}
		return readCloser{zr, f}, strings.TrimSuffix(name, filepath.Ext(name)), nil

	case ".zip":
		var buf strings.Builder
		var member string
		err := archiver.Walk(path, func(f archiver.File) error {
			if f.IsDir() || member != "" {
				return nil
			}
			member = f.Name()
			_, cpErr := io.Copy(&buf, f)
			return cpErr
		})
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %v", path, err)
		}
		if member == "" {
			return nil, "", fmt.Errorf("open %s: empty archive", path)
		}
		return io.NopCloser(strings.NewReader(buf.String())), member, nil
	}

	f, err := os.Open(path)
	return f, name, err
}

// openOutput creates the output file, or returns stdout with the --stdout flag.
func openOutput(c *cli.Context, inPath, outName string) (io.WriteCloser, error) {
	if c.Bool("stdout") {
		return os.Stdout, nil
	}
	dir := c.String("outdir")
	if dir == "" {
		dir = filepath.Dir(inPath)
	}
	return os.Create(filepath.Join(dir, outName))
}

func decompressFile(c *cli.Context, path string) error {
	in, name, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	dec, err := crinex.NewDecoder(in)
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	dec.Recover = c.Bool("recover")

	outName, err := rinex.Crx2rnxFilename(name)
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	out, err := openOutput(c, path, outName)
	if err != nil {
		return err
	}
	if out != os.Stdout {
		defer out.Close()
	}

	for _, line := range dec.RawHeader() {
		fmt.Fprintln(out, line)
	}

	wr := rinex.NewObsWriter(out, dec.Header)
	for dec.NextEpoch() {
		if err := wr.WriteEpoch(dec.Epoch()); err != nil {
			return fmt.Errorf("%s: %v", path, err)
		}
	}
	if err := dec.Err(); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	if err := wr.Flush(); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}

	for _, w := range dec.Warnings {
		log.Printf("%s: %s", path, w)
	}
	return nil
}

func compressFile(c *cli.Context, path string) error {
	in, name, err := openInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	dec, err := rinex.NewObsDecoder(in)
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}

	outName, err := rinex.Rnx2crxFilename(name)
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	out, err := openOutput(c, path, outName)
	if err != nil {
		return err
	}
	if out != os.Stdout {
		defer out.Close()
	}

	cfg := crinex.DefaultConfig()
	cfg.MaxOrder = c.Int("order")
	cfg.Pgm = "crxgo " + version

	enc, err := crinex.NewEncoder(out, dec.Header, cfg)
	if err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	if err := enc.WriteHeader(); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}

	for dec.NextEpoch() {
		if err := enc.WriteEpoch(dec.Epoch()); err != nil {
			return fmt.Errorf("%s: %v", path, err)
		}
	}
	if err := dec.Err(); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	return enc.Flush()
}

// readCloser closes the decompressor and the underlying file.
type readCloser struct {
	io.Reader
	f *os.File
}

func (rc readCloser) Close() error {
	if c, ok := rc.Reader.(io.Closer); ok {
		c.Close()
	}
	return rc.f.Close()
}
