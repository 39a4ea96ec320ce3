// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the algorithm applied to a token's structure
// bytes. Values are stored in bits 0-2 of the header byte and are
// protocol constants.
type Compression uint8

const (
	// CompressionNone stores the CBOR bytes as is. Useful when
	// inspecting tokens by hand.
	CompressionNone Compression = 0

	// CompressionZstd is the default. SDP text is repetitive and
	// zstd at its best level roughly halves a typical offer.
	CompressionZstd Compression = 1

	// CompressionLZ4 is LZ4 block mode with the uncompressed length
	// prefixed as a uvarint.
	CompressionLZ4 Compression = 2

	// CompressionDeflate is raw DEFLATE (RFC 1951).
	CompressionDeflate Compression = 3
)

// maxDecompressedSize bounds the structure bytes a token may expand
// to. Real offers are a few kilobytes.
const maxDecompressedSize = 1 << 20

var errTooLarge = fmt.Errorf("decompressed size exceeds %d bytes", maxDecompressedSize)

// String returns the name used in configuration files and flags.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "deflate":
		return CompressionDeflate, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

func (c Compression) valid() bool {
	return c <= CompressionDeflate
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use, so one of
// each serves every token.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("signaling: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxDecompressedSize),
	)
	if err != nil {
		panic("signaling: zstd decoder initialization failed: " + err.Error())
	}
}

// compress applies c to data. It returns the algorithm actually used:
// lz4 block mode cannot represent input it fails to shrink, so such
// input is stored uncompressed instead.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), CompressionZstd, nil
	case CompressionLZ4:
		compressed, err := compressLZ4(data)
		if errors.Is(err, errIncompressible) {
			return data, CompressionNone, nil
		}
		return compressed, CompressionLZ4, err
	case CompressionDeflate:
		compressed, err := compressDeflate(data)
		return compressed, CompressionDeflate, err
	default:
		return nil, c, fmt.Errorf("unsupported compression %s", c)
	}
}

// decompress reverses compress, enforcing maxDecompressedSize.
func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) > maxDecompressedSize {
			return nil, errTooLarge
		}
		return data, nil
	case CompressionZstd:
		decoded, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		if len(decoded) > maxDecompressedSize {
			return nil, errTooLarge
		}
		return decoded, nil
	case CompressionLZ4:
		return decompressLZ4(data)
	case CompressionDeflate:
		return decompressDeflate(data)
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}

var errIncompressible = errors.New("data is incompressible")

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errIncompressible
	}
	output := binary.AppendUvarint(nil, uint64(len(data)))
	prefix := len(output)
	output = append(output, make([]byte, lz4.CompressBlockBound(len(data)))...)

	written, err := lz4.CompressBlock(data, output[prefix:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for input it cannot shrink.
	if written == 0 {
		return nil, errIncompressible
	}
	return output[:prefix+written], nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	size, prefix := binary.Uvarint(data)
	if prefix <= 0 {
		return nil, errors.New("lz4: truncated length prefix")
	}
	if size > maxDecompressedSize {
		return nil, errTooLarge
	}
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(data[prefix:], destination)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	if uint64(read) != size {
		return nil, fmt.Errorf("lz4: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

func compressDeflate(data []byte) ([]byte, error) {
	var buffer bytes.Buffer
	writer, err := flate.NewWriter(&buffer, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buffer.Bytes(), nil
}

func decompressDeflate(data []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(data))
	defer reader.Close()
	decoded, err := io.ReadAll(io.LimitReader(reader, maxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if len(decoded) > maxDecompressedSize {
		return nil, errTooLarge
	}
	return decoded, nil
}
