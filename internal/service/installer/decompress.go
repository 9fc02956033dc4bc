package installer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

var (
	errUnknownCompression = errors.New("unknown compression")
	errDecompressedSize   = errors.New("decompressed artifact exceeds size limit")
)

// Decompress decodes a verified artifact. Raw artifacts are returned as is.
// limit caps the decoded size.
func Decompress(data []byte, compression string, limit int64) ([]byte, error) {
	var (
		reader io.Reader
		closer func()
	)

	switch compression {
	case artifact.CompressionNone:
		return data, nil
	case artifact.CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}

		reader, closer = gz, func() { _ = gz.Close() }
	case artifact.CompressionZstd:
		decoder, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}

		reader, closer = decoder, decoder.Close
	case artifact.CompressionXZ:
		xzReader, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}

		reader, closer = xzReader, func() {}
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCompression, compression)
	}

	defer closer()

	var buffer bytes.Buffer

	read, err := io.Copy(&buffer, io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", compression, err)
	}

	if read > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errDecompressedSize, limit)
	}

	return buffer.Bytes(), nil
}
