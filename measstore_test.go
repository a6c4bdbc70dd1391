package measstore

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openanalytics/measstore/blobstore"
	"github.com/openanalytics/measstore/codec"
	"github.com/openanalytics/measstore/columnstore"
	"github.com/openanalytics/measstore/ingest"
	"github.com/openanalytics/measstore/measdata"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *blobstore.MemoryStore, *measdata.MemoryMeasurementStore) {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	columns := columnstore.NewMemoryStore()
	meta := measdata.NewMemoryMeasurementStore()

	s := New(blobs, columns, meta, opts...)
	t.Cleanup(s.Close)
	return s, blobs, meta
}

func TestService_SynchronousWritePaths(t *testing.T) {
	ctx := context.Background()
	s, _, meta := newTestService(t)

	require.NoError(t, meta.Save(ctx, &measdata.Measurement{ID: 1, Rows: 2, Columns: 3}))

	require.NoError(t, s.Router().SetWellData(ctx, 1, map[string][]float32{
		"intensity": {1, 2, 3, 4, 5, 6},
	}))
	got, err := s.Router().WellColumn(ctx, 1, "intensity")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got)
}

func TestService_AsyncIngestion(t *testing.T) {
	ctx := context.Background()
	s, _, meta := newTestService(t, WithQueue(10, 2))

	require.NoError(t, meta.Save(ctx, &measdata.Measurement{ID: 1, Rows: 1, Columns: 2}))

	require.NoError(t, s.EnqueueWellData(ctx, ingest.WellDataMessage{
		MeasurementID: 1, Column: "intensity", Data: []float32{1, 2},
	}))
	require.NoError(t, s.EnqueueSubwellData(ctx, ingest.SubwellDataMessage{
		MeasurementID: 1, WellNr: 1, Column: "area", Data: []float32{0.5, 1.5},
	}))

	// Queued writes land through the same router as synchronous calls.
	require.Eventually(t, func() bool {
		_, err := s.Router().WellColumn(ctx, 1, "intensity")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := s.Router().SubwellWellData(ctx, 1, 1, "area")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	values, err := s.Router().SubwellWellData(ctx, 1, 1, "area")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1.5}, values)
}

func TestService_InvalidMessagesAreDropped(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	// Invalid messages are discarded without error and never queued.
	require.NoError(t, s.EnqueueWellData(ctx, ingest.WellDataMessage{MeasurementID: 1, Column: " "}))
	require.NoError(t, s.EnqueueSubwellData(ctx, ingest.SubwellDataMessage{MeasurementID: 1, Column: "area"}))
	assert.Equal(t, 0, s.QueueDepth())
}

func TestService_CodestreamAccessor(t *testing.T) {
	ctx := context.Background()
	s, _, meta := newTestService(t)

	require.NoError(t, meta.Save(ctx, &measdata.Measurement{ID: 1, Rows: 1, Columns: 1}))

	image := make([]byte, 250000)
	_, err := rand.New(rand.NewSource(7)).Read(image)
	require.NoError(t, err)
	require.NoError(t, s.Router().SetImageChannelData(ctx, 1, 1, "DAPI", image))

	a, err := s.CodestreamAccessor(ctx, 1, 1, "DAPI")
	require.NoError(t, err)
	assert.Equal(t, int64(len(image)), a.Size())

	got, err := a.GetBytes(ctx, 100, 1000)
	require.NoError(t, err)
	assert.Equal(t, image[100:1100], got)

	// The cached accessor is reused across calls.
	a2, err := s.CodestreamAccessor(ctx, 1, 1, "DAPI")
	require.NoError(t, err)
	assert.Same(t, a, a2)

	// An absent image surfaces the not-found sentinel via the size fetch.
	_, err = s.CodestreamAccessor(ctx, 1, 1, "GFP")
	assert.ErrorIs(t, err, measdata.ErrNotFound)
}

func TestService_WithZstdCodec(t *testing.T) {
	ctx := context.Background()
	z, err := codec.NewZstd()
	require.NoError(t, err)
	s, _, meta := newTestService(t, WithCodec(z))

	require.NoError(t, meta.Save(ctx, &measdata.Measurement{ID: 1, Rows: 1, Columns: 1}))

	require.NoError(t, s.Router().SetSubwellData(ctx, 1, "area", map[int][]float32{1: {1, 2, 3}}))
	got, rerr := s.Router().SubwellWellData(ctx, 1, 1, "area")
	require.NoError(t, rerr)
	assert.Equal(t, []float32{1, 2, 3}, got)
}

func TestService_DeleteMeasurement(t *testing.T) {
	ctx := context.Background()
	s, blobs, meta := newTestService(t)

	require.NoError(t, meta.Save(ctx, &measdata.Measurement{ID: 1, Rows: 1, Columns: 1}))
	require.NoError(t, s.Router().SetSubwellData(ctx, 1, "area", map[int][]float32{1: {1}}))
	require.NoError(t, s.Router().SetImageChannelData(ctx, 1, 1, "DAPI", []byte("img")))

	require.NoError(t, s.Router().DeleteMeasurement(ctx, 1))
	s.Router().Wait()

	assert.Equal(t, 0, blobs.Len())
	ok, err := meta.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
