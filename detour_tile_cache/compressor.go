package detour_tile_cache

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// TileCacheCompressor packs tile data kept in the tiles cache.
type TileCacheCompressor interface {
	Compress(data []byte) []byte
	Decompress(compressed []byte) ([]byte, error)
	Close() error
}

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor returns a compressor safe for concurrent use.
func NewZstdCompressor() (TileCacheCompressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("detour_tile_cache: create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("detour_tile_cache: create zstd decoder: %w", err)
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCompressor) Compress(data []byte) []byte {
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (c *zstdCompressor) Decompress(compressed []byte) ([]byte, error) {
	data, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("detour_tile_cache: decompress: %w", err)
	}
	return data, nil
}

func (c *zstdCompressor) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}
