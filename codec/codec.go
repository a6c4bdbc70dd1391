// Package codec centralizes the byte encoding of subwell value arrays.
//
// Stored blobs are self-describing: the first four bytes identify the
// encoding, so compressed and raw blobs can coexist in the same bucket and
// Decode handles either transparently. Changing an encoding is a breaking
// change for already persisted data; add a new magic instead.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrUnknownEncoding is returned when a blob does not start with a
	// recognized magic.
	ErrUnknownEncoding = errors.New("unknown value encoding")

	magicRaw  = [4]byte{'M', 'F', 'R', '1'}
	magicZstd = [4]byte{'M', 'F', 'Z', '1'}
)

// Float32Codec encodes/decodes float32 value arrays.
// Implementations must be safe for concurrent use.
type Float32Codec interface {
	Encode(values []float32) ([]byte, error)
	Decode(data []byte) ([]float32, error)
	Name() string
}

// Raw encodes values as little-endian float32 words behind the raw magic.
type Raw struct{}

// Name returns the stable codec name.
func (Raw) Name() string { return "raw" }

// Encode serializes values.
func (Raw) Encode(values []float32) ([]byte, error) {
	return encodeRaw(values), nil
}

// Decode deserializes values encoded by any built-in codec.
func (Raw) Decode(data []byte) ([]float32, error) {
	return Decode(data)
}

// Default is the codec used when none is configured.
var Default Float32Codec = Raw{}

// Zstd encodes values as a zstd frame of the raw form, behind the zstd magic.
// Worth it for subwell columns with long runs of repeated values.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd creates a zstd codec. The encoder and decoder are reused across
// calls and are safe for concurrent use.
func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

// Name returns the stable codec name.
func (*Zstd) Name() string { return "zstd" }

// Encode serializes and compresses values.
func (z *Zstd) Encode(values []float32) ([]byte, error) {
	raw := encodeRaw(values)
	out := make([]byte, 4, 4+len(raw)/2)
	copy(out, magicZstd[:])
	return z.enc.EncodeAll(raw[4:], out), nil
}

// Decode deserializes values encoded by any built-in codec.
func (z *Zstd) Decode(data []byte) ([]float32, error) {
	if len(data) >= 4 && [4]byte(data[:4]) == magicZstd {
		raw, err := z.dec.DecodeAll(data[4:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return decodeWords(raw)
	}
	return Decode(data)
}

// Decode decodes a raw-encoded blob. Zstd blobs require a Zstd codec.
func Decode(data []byte) ([]float32, error) {
	if len(data) < 4 || [4]byte(data[:4]) != magicRaw {
		return nil, ErrUnknownEncoding
	}
	return decodeWords(data[4:])
}

func encodeRaw(values []float32) []byte {
	out := make([]byte, 4+4*len(values))
	copy(out, magicRaw[:])
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4+4*i:], math.Float32bits(v))
	}
	return out
}

func decodeWords(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("value payload length %d is not a multiple of 4", len(data))
	}
	values := make([]float32, len(data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return values, nil
}
