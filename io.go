package spilltree

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const ioBufferSize = 1 << 20

type writeCloser struct {
	*bufio.Writer
	closers []io.Closer
}

func (wc *writeCloser) Close() error {
	err := wc.Writer.Flush()
	for _, c := range wc.closers {
		err = errors.CombineErrors(err, c.Close())
	}
	return err
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var err error
	for _, c := range rc.closers {
		err = errors.CombineErrors(err, c.Close())
	}
	return err
}

// Create opens path for writing. Paths ending in .zst or .lz4 are compressed.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}

	switch {
	case strings.HasSuffix(path, ".zst"):
		enc, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "zstd writer")
		}
		return &writeCloser{Writer: bufio.NewWriterSize(enc, ioBufferSize), closers: []io.Closer{enc, f}}, nil
	case strings.HasSuffix(path, ".lz4"):
		enc := lz4.NewWriter(f)
		return &writeCloser{Writer: bufio.NewWriterSize(enc, ioBufferSize), closers: []io.Closer{enc, f}}, nil
	default:
		return &writeCloser{Writer: bufio.NewWriterSize(f, ioBufferSize), closers: []io.Closer{f}}, nil
	}
}

// Open opens path for reading, undoing the compression chosen by Create.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	switch {
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "zstd reader")
		}
		dc := dec.IOReadCloser()
		return &readCloser{Reader: bufio.NewReaderSize(dc, ioBufferSize), closers: []io.Closer{dc, f}}, nil
	case strings.HasSuffix(path, ".lz4"):
		return &readCloser{Reader: bufio.NewReaderSize(lz4.NewReader(f), ioBufferSize), closers: []io.Closer{f}}, nil
	default:
		return &readCloser{Reader: bufio.NewReaderSize(f, ioBufferSize), closers: []io.Closer{f}}, nil
	}
}
