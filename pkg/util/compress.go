package util

import (
	"fmt"

	zstd "github.com/klauspost/compress/zstd"
)

// Compressor comprime snapshots antes de irem para o Redis. O encoder é
// reutilizado entre chamadas via EncodeAll.
type Compressor struct {
	encoder *zstd.Encoder
	level   int
}

func NewCompressor(level int) (*Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("zstd new writer: %w", err)
	}
	return &Compressor{encoder: enc, level: level}, nil
}

func (c *Compressor) Compress(data []byte) []byte {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (c *Compressor) Close() {
	c.encoder.Close()
}

func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
