// Package compress implements the compression codecs used for stored content.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/keyutils/metadata"
)

var (
	// ErrDecompression is returned when compressed data is corrupt or does
	// not decompress to the expected size.
	ErrDecompression = errors.New("compress: decompression failed")

	// ErrIncompressible is returned when compressed output would not be
	// smaller than the input.
	ErrIncompressible = errors.New("compress: data is incompressible")
)

var (
	zstdEncoder *zstd.Encoder
	zstdPool    = NewDecompressPool(0)
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
}

// Compress compresses data with codec. It returns ErrIncompressible when the
// result would not be smaller than data; callers then store data as is.
func Compress(codec metadata.Codec, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch codec {
	case metadata.CodecNone:
		return data, nil
	case metadata.CodecZstd:
		out = zstdEncoder.EncodeAll(data, nil)
	case metadata.CodecGzip:
		out, err = compressGzip(data)
	case metadata.CodecLZ4:
		out, err = compressLZ4(data)
	default:
		return nil, fmt.Errorf("compress: unsupported codec %s", codec)
	}
	if err != nil {
		return nil, err
	}
	if len(out) >= len(data) {
		return nil, ErrIncompressible
	}
	return out, nil
}

// Decompress reverses Compress. size is the exact expected output length.
func Decompress(codec metadata.Codec, data []byte, size int64) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrDecompression, size)
	}

	var (
		out []byte
		err error
	)
	switch codec {
	case metadata.CodecNone:
		out = data
	case metadata.CodecZstd:
		out, err = decompressZstd(data, size)
	case metadata.CodecGzip:
		out, err = decompressGzip(data, size)
	case metadata.CodecLZ4:
		out, err = decompressLZ4(data, size)
	default:
		return nil, fmt.Errorf("%w: unsupported codec %s", ErrDecompression, codec)
	}
	if err != nil {
		return nil, err
	}
	if int64(len(out)) != size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrDecompression, len(out), size)
	}
	return out, nil
}

func decompressZstd(data []byte, size int64) ([]byte, error) {
	dec, release, err := zstdPool.Get(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer release()
	return readExactly(dec, size)
}

func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressGzip(data []byte, size int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer zr.Close()
	return readExactly(zr, size)
}

// readExactly reads size bytes from r and fails if r holds more or less.
func readExactly(r io.Reader, size int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, size+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	if int64(len(out)) != size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrDecompression, len(out), size)
	}
	return out, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports incompressible input as zero bytes written.
	if n == 0 {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

func decompressLZ4(data []byte, size int64) ([]byte, error) {
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %v", ErrDecompression, err)
	}
	return dst[:n], nil
}
