package utils

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
)

// CompressionAlgorithm names the codec used for a stored chunk body. The
// value is persisted next to the payload, so decoding never has to guess.
type CompressionAlgorithm string

const (
	CompressionNone CompressionAlgorithm = "none"
	CompressionGzip CompressionAlgorithm = "gzip"
	CompressionZlib CompressionAlgorithm = "zlib"
)

// Bodies below this size are stored raw; header overhead would outweigh
// the savings.
const compressMinBytes = 500

// CompressText encodes chunk text for storage and reports the algorithm
// used, which must accompany the payload for DecompressText.
func CompressText(text string) ([]byte, CompressionAlgorithm, error) {
	data := []byte(text)
	if len(data) < compressMinBytes {
		return data, CompressionNone, nil
	}

	compressed, err := compress(data, CompressionGzip)
	if err != nil {
		return nil, CompressionNone, err
	}
	return compressed, CompressionGzip, nil
}

// DecompressText restores chunk text stored by CompressText.
func DecompressText(compressed []byte, algorithm CompressionAlgorithm) (string, error) {
	data, err := decompress(compressed, algorithm)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func compress(data []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	var writer io.WriteCloser
	switch algorithm {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		writer = gzip.NewWriter(&buf)
	case CompressionZlib:
		writer = zlib.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("compress with %s: %w", algorithm, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("flush %s writer: %w", algorithm, err)
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(compressed) == 0 {
		return compressed, nil
	}

	var reader io.ReadCloser
	var err error
	switch algorithm {
	case CompressionNone:
		return compressed, nil
	case CompressionGzip:
		reader, err = gzip.NewReader(bytes.NewReader(compressed))
	case CompressionZlib:
		reader, err = zlib.NewReader(bytes.NewReader(compressed))
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s reader: %w", algorithm, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s payload: %w", algorithm, err)
	}
	return data, nil
}
