package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeKey_ReversesDigits(t *testing.T) {
	tests := []struct {
		measID   int64
		key      string
		expected string
	}{
		{1, "imagedata.1.DAPI", "1/imagedata.1.DAPI"},
		{123, "subwelldata.area.5", "321/subwelldata.area.5"},
		{1000, "x", "0001/x"},
		{987654, "y", "456789/y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, MakeKey(tt.measID, tt.key))
	}
}

func TestParseKey_InvertsMakeKey(t *testing.T) {
	for _, key := range []string{"welldata", "subwelldata.area.42", "imagedata.3.DAPI"} {
		assert.Equal(t, key, ParseKey(MakeKey(123456, key)))
	}
	// Keys may themselves contain slashes after the prefix.
	assert.Equal(t, "a/b", ParseKey("321/a/b"))
}

func TestSplitKeys(t *testing.T) {
	keys := make([]string, 2500)
	for i := range keys {
		keys[i] = string(rune('a' + i%26))
	}

	groups := SplitKeys(keys, 1000)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 1000)
	assert.Len(t, groups[1], 1000)
	assert.Len(t, groups[2], 500)

	assert.Nil(t, SplitKeys(nil, 1000))

	groups = SplitKeys(keys[:1000], 1000)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 1000)
}
