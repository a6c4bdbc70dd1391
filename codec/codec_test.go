package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaw_RoundTrip(t *testing.T) {
	tests := [][]float32{
		nil,
		{},
		{0},
		{1.5, -2.25, 3.75},
		{float32(math.Inf(1)), float32(math.Inf(-1)), math.MaxFloat32, math.SmallestNonzeroFloat32},
	}

	for _, values := range tests {
		data, err := Raw{}.Encode(values)
		require.NoError(t, err)
		assert.Len(t, data, 4+4*len(values))

		got, err := Raw{}.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, len(values), len(got))
		for i := range values {
			assert.Equal(t, values[i], got[i])
		}
	}
}

func TestRaw_PreservesNaN(t *testing.T) {
	data, err := Raw{}.Encode([]float32{float32(math.NaN())})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, math.IsNaN(float64(got[0])))
}

func TestZstd_RoundTrip(t *testing.T) {
	z, err := NewZstd()
	require.NoError(t, err)

	values := make([]float32, 10000)
	for i := range values {
		values[i] = float32(i % 7)
	}

	data, err := z.Encode(values)
	require.NoError(t, err)
	assert.Less(t, len(data), 4+4*len(values), "repetitive data should compress")

	got, err := z.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestZstd_DecodesRaw(t *testing.T) {
	z, err := NewZstd()
	require.NoError(t, err)

	values := []float32{1, 2, 3}
	data, err := Raw{}.Encode(values)
	require.NoError(t, err)

	got, err := z.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestDecode_UnknownEncoding(t *testing.T) {
	_, err := Decode([]byte("XXXX1234"))
	assert.ErrorIs(t, err, ErrUnknownEncoding)

	_, err = Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrUnknownEncoding)

	// Zstd blobs cannot be decoded without a zstd codec.
	z, zerr := NewZstd()
	require.NoError(t, zerr)
	data, zerr := z.Encode([]float32{1, 2, 3})
	require.NoError(t, zerr)
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestDecode_TruncatedPayload(t *testing.T) {
	data, err := Raw{}.Encode([]float32{1, 2})
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-2])
	assert.Error(t, err)
}
