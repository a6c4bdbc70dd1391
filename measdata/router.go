package measdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/openanalytics/measstore/blobstore"
	"github.com/openanalytics/measstore/codec"
	"github.com/openanalytics/measstore/columnstore"
)

const (
	prefixSubwellData = "subwelldata"
	prefixImageData   = "imagedata"

	defaultFanout = 16
)

// Well data lives in the column store; subwell and image data are objects:
//
//	subwelldata.<column>.<wellNr>  one float array per well per column
//	imagedata.<wellNr>.<channel>   one codestream per well per channel
func subwellKey(column string, wellNr int) string {
	return fmt.Sprintf("%s.%s.%d", prefixSubwellData, column, wellNr)
}

func imageKey(wellNr int, channel string) string {
	return fmt.Sprintf("%s.%d.%s", prefixImageData, wellNr, channel)
}

// Router maps the three measurement data shapes (well, subwell, image) onto
// the column store and the object store. It owns logical key construction,
// the write-once invariants the lower layers do not enforce, and the
// fan-out for multi-object reads, writes and deletes.
type Router struct {
	blobs   blobstore.Store
	columns columnstore.Store
	meta    MeasurementStore
	codec   codec.Float32Codec
	fanout  int
	logger  *slog.Logger

	bg sync.WaitGroup
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithCodec sets the codec for subwell value blobs. Default: codec.Default.
func WithCodec(c codec.Float32Codec) RouterOption {
	return func(r *Router) {
		if c != nil {
			r.codec = c
		}
	}
}

// WithFanout caps the number of concurrent store calls per multi-object
// operation. Default: 16.
func WithFanout(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.fanout = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a Router over the given stores.
func NewRouter(blobs blobstore.Store, columns columnstore.Store, meta MeasurementStore, opts ...RouterOption) *Router {
	r := &Router{
		blobs:   blobs,
		columns: columns,
		meta:    meta,
		codec:   codec.Default,
		fanout:  defaultFanout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wait blocks until all background deletions have finished. Intended for
// tests and graceful shutdown.
func (r *Router) Wait() {
	r.bg.Wait()
}

/*
 * Well data
 */

// SetWellData performs the one-off bulk write of all well columns. Every
// column must hold exactly one value per well. All columns commit in a
// single transaction; a second bulk write for the same measurement is
// rejected. On success the well column registry is replaced.
func (r *Router) SetWellData(ctx context.Context, measID int64, wellData map[string][]float32) error {
	meas, err := r.requireMeas(ctx, measID, "welldata")
	if err != nil {
		return err
	}
	if len(wellData) == 0 {
		return validationf("cannot save welldata for measurement %d: no data provided", measID)
	}

	wellCount := meas.WellCount()
	for column, values := range wellData {
		if len(values) != wellCount {
			return validationf(
				"cannot save welldata for measurement %d: column %s has an unexpected count (expected: %d, actual: %d)",
				measID, column, wellCount, len(values))
		}
	}

	if err := r.columns.SaveBulk(ctx, measID, wellData); err != nil {
		var exists *columnstore.DataExistsError
		if errors.As(err, &exists) {
			return validationErr(err, "cannot save welldata: data already exists for measurement %d", measID)
		}
		return storageErr("welldata bulk write", measID, err)
	}

	columns := make([]string, 0, len(wellData))
	for column := range wellData {
		columns = append(columns, column)
	}
	slices.Sort(columns)
	meas.WellColumns = columns
	return r.meta.Save(ctx, meas)
}

// SetWellColumn writes a single well column incrementally. The column must
// not have been written before; on success it is added to the registry.
func (r *Router) SetWellColumn(ctx context.Context, measID int64, column string, values []float32) error {
	meas, err := r.requireMeas(ctx, measID, "welldata")
	if err != nil {
		return err
	}
	if wellCount := meas.WellCount(); len(values) != wellCount {
		return validationf(
			"cannot save welldata for measurement %d: column %s has an unexpected count (expected: %d, actual: %d)",
			measID, column, wellCount, len(values))
	}
	if slices.Contains(meas.WellColumns, column) {
		return validationf("cannot save welldata: measurement %d already contains data for column %s", measID, column)
	}

	if err := r.columns.SaveColumn(ctx, measID, column, values); err != nil {
		return storageErr("welldata column write", measID, err)
	}

	meas.WellColumns = sortedInsert(meas.WellColumns, column)
	return r.meta.Save(ctx, meas)
}

// WellColumn returns one well column, or ErrNotFound when either the
// measurement or the column is absent.
func (r *Router) WellColumn(ctx context.Context, measID int64, column string) ([]float32, error) {
	exists, err := r.meta.Exists(ctx, measID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	values, err := r.columns.ReadColumn(ctx, measID, column)
	if errors.Is(err, columnstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("welldata read", measID, err)
	}
	return values, nil
}

// WellData returns all well columns of a measurement. An absent measurement
// yields an empty result, not an error.
func (r *Router) WellData(ctx context.Context, measID int64) (map[string][]float32, error) {
	exists, err := r.meta.Exists(ctx, measID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	data, err := r.columns.ReadAll(ctx, measID)
	if err != nil {
		return nil, storageErr("welldata read", measID, err)
	}
	return data, nil
}

/*
 * Subwell data
 */

// SetSubwellData writes a whole subwell column: one value array per well,
// keyed by 1-based well number, written as independent objects in parallel.
// The column must not have been written before and the map must cover every
// well exactly once. The column is registered only after all objects are
// stored.
func (r *Router) SetSubwellData(ctx context.Context, measID int64, column string, data map[int][]float32) error {
	meas, err := r.requireMeas(ctx, measID, "subwelldata")
	if err != nil {
		return err
	}
	if slices.Contains(meas.SubWellColumns, column) {
		return validationf("cannot save subwelldata: measurement %d already contains subwelldata for column %s", measID, column)
	}
	if len(data) == 0 {
		return validationf("cannot save subwelldata for measurement %d: no data provided", measID)
	}
	if wellCount := meas.WellCount(); len(data) != wellCount {
		return validationf(
			"cannot save subwelldata for measurement %d: data has an unexpected well count (expected: %d, actual: %d)",
			measID, wellCount, len(data))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for wellNr, values := range data {
		g.Go(func() error {
			return r.putSubwellObject(gctx, measID, wellNr, column, values)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	meas.SubWellColumns = sortedInsert(meas.SubWellColumns, column)
	return r.meta.Save(ctx, meas)
}

// SetSubwellWellData writes the subwell array of a single well. This path is
// invoked up to millions of times per plate, so it deliberately skips the
// measurement-existence and duplicate-column checks; the whole-column path
// is the checked one.
func (r *Router) SetSubwellWellData(ctx context.Context, measID int64, wellNr int, column string, values []float32) error {
	if column == "" {
		return validationf("cannot save subwelldata: no column provided")
	}
	if len(values) == 0 {
		return validationf("cannot save subwelldata: no data provided")
	}
	return r.putSubwellObject(ctx, measID, wellNr, column, values)
}

func (r *Router) putSubwellObject(ctx context.Context, measID int64, wellNr int, column string, values []float32) error {
	encoded, err := r.codec.Encode(values)
	if err != nil {
		return err
	}
	if err := r.blobs.Put(ctx, measID, subwellKey(column, wellNr), encoded); err != nil {
		return storageErr(fmt.Sprintf("subwelldata write (well %d, column %s)", wellNr, column), measID, err)
	}
	return nil
}

// SubwellWellData returns the subwell array of one well, or ErrNotFound.
func (r *Router) SubwellWellData(ctx context.Context, measID int64, wellNr int, column string) ([]float32, error) {
	exists, err := r.meta.Exists(ctx, measID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	key := subwellKey(column, wellNr)
	ok, err := r.blobs.Exists(ctx, measID, key)
	if err != nil {
		return nil, storageErr("subwelldata read", measID, err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	data, err := r.blobs.Get(ctx, measID, key)
	if err != nil {
		return nil, storageErr("subwelldata read", measID, err)
	}
	return r.codec.Decode(data)
}

// SubwellData returns a whole subwell column keyed by well number, fetching
// all well objects in parallel. An absent measurement or column yields an
// empty result.
func (r *Router) SubwellData(ctx context.Context, measID int64, column string) (map[int][]float32, error) {
	exists, err := r.meta.Exists(ctx, measID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	keys, err := r.blobs.List(ctx, measID, prefixSubwellData+"."+column+".")
	if err != nil {
		return nil, storageErr("subwelldata list", measID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	result := make(map[int][]float32, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for _, key := range keys {
		g.Go(func() error {
			wellNr, err := wellNrFromKey(key)
			if err != nil {
				return err
			}
			data, err := r.blobs.Get(gctx, measID, key)
			if err != nil {
				return storageErr("subwelldata read", measID, err)
			}
			values, err := r.codec.Decode(data)
			if err != nil {
				return err
			}
			mu.Lock()
			result[wellNr] = values
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func wellNrFromKey(key string) (int, error) {
	wellNr, err := strconv.Atoi(key[strings.LastIndexByte(key, '.')+1:])
	if err != nil {
		return 0, fmt.Errorf("malformed subwelldata key %q: %w", key, err)
	}
	return wellNr, nil
}

/*
 * Image data
 */

// SetImageData writes the codestreams of all channels of one well in
// parallel. If channels were registered by an earlier write, the provided
// set must match them exactly; otherwise the provided channels become the
// registered set.
func (r *Router) SetImageData(ctx context.Context, measID int64, wellNr int, imageData map[string][]byte) error {
	meas, err := r.requireMeas(ctx, measID, "image data")
	if err != nil {
		return err
	}
	if len(imageData) == 0 {
		return validationf("cannot save image data for measurement %d: no data provided", measID)
	}

	channels := make([]string, 0, len(imageData))
	for channel := range imageData {
		channels = append(channels, channel)
	}
	slices.Sort(channels)
	if meas.ImageChannels != nil && !slices.Equal(channels, meas.ImageChannels) {
		return validationf(
			"cannot save image data for measurement %d: provided channels do not match the registered channels", measID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for channel, data := range imageData {
		g.Go(func() error {
			if err := r.blobs.Put(gctx, measID, imageKey(wellNr, channel), data); err != nil {
				return storageErr(fmt.Sprintf("image data write (well %d, channel %s)", wellNr, channel), measID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if meas.ImageChannels == nil {
		meas.ImageChannels = channels
		return r.meta.Save(ctx, meas)
	}
	return nil
}

// SetImageChannelData writes one channel codestream of one well. A new
// channel name is added to the registry; for an already registered channel
// the metadata update is an idempotent no-op while the object itself is
// still overwritten.
func (r *Router) SetImageChannelData(ctx context.Context, measID int64, wellNr int, channel string, data []byte) error {
	meas, err := r.requireMeas(ctx, measID, "image data")
	if err != nil {
		return err
	}
	if strings.TrimSpace(channel) == "" {
		return validationf("cannot save image data for measurement %d: no channel provided", measID)
	}
	if len(data) == 0 {
		return validationf("cannot save image data for measurement %d: no data provided", measID)
	}

	if err := r.blobs.Put(ctx, measID, imageKey(wellNr, channel), data); err != nil {
		return storageErr(fmt.Sprintf("image data write (well %d, channel %s)", wellNr, channel), measID, err)
	}

	if slices.Contains(meas.ImageChannels, channel) {
		return nil
	}
	meas.ImageChannels = sortedInsert(meas.ImageChannels, channel)
	return r.meta.Save(ctx, meas)
}

// ImageDataSize returns the size in bytes of one channel codestream, or
// ErrNotFound.
func (r *Router) ImageDataSize(ctx context.Context, measID int64, wellNr int, channel string) (int64, error) {
	size, err := r.blobs.Size(ctx, measID, imageKey(wellNr, channel))
	if errors.Is(err, blobstore.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, storageErr("image data size", measID, err)
	}
	return size, nil
}

// ImageData returns one whole channel codestream, or ErrNotFound.
func (r *Router) ImageData(ctx context.Context, measID int64, wellNr int, channel string) ([]byte, error) {
	exists, err := r.meta.Exists(ctx, measID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	data, err := r.blobs.Get(ctx, measID, imageKey(wellNr, channel))
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("image data read", measID, err)
	}
	return data, nil
}

// ImageDataRange returns length bytes of one channel codestream starting at
// offset; length <= 0 returns the whole codestream. No existence check is
// performed: this path serves chunk fetches of the codestream accessor and
// runs hot during progressive decoding.
func (r *Router) ImageDataRange(ctx context.Context, measID int64, wellNr int, channel string, offset int64, length int) ([]byte, error) {
	data, err := r.blobs.GetRange(ctx, measID, imageKey(wellNr, channel), offset, length)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("image data read", measID, err)
	}
	return data, nil
}

// ImageWellData returns all channel codestreams of one well, fetched in
// parallel. An absent measurement or well yields an empty result.
func (r *Router) ImageWellData(ctx context.Context, measID int64, wellNr int) (map[string][]byte, error) {
	exists, err := r.meta.Exists(ctx, measID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	prefix := fmt.Sprintf("%s.%d.", prefixImageData, wellNr)
	keys, err := r.blobs.List(ctx, measID, prefix)
	if err != nil {
		return nil, storageErr("image data list", measID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	result := make(map[string][]byte, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for _, key := range keys {
		g.Go(func() error {
			channel := key[strings.LastIndexByte(key, '.')+1:]
			data, err := r.blobs.Get(gctx, measID, key)
			if err != nil {
				return storageErr("image data read", measID, err)
			}
			mu.Lock()
			result[channel] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

/*
 * Deletion
 */

// DeleteMeasurement removes the metadata record synchronously and schedules
// removal of all three data shapes in the background; bulk data removal can
// take minutes for a large plate and must not block the caller.
func (r *Router) DeleteMeasurement(ctx context.Context, measID int64) error {
	if err := r.meta.Delete(ctx, measID); err != nil {
		return err
	}

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		// Detached from the caller's context: the delete must finish even
		// after the triggering request completes.
		bgCtx := context.Background()

		if err := r.columns.DeleteAll(bgCtx, measID); err != nil {
			r.logger.Error("welldata delete failed", "meas_id", measID, "error", err)
		}
		r.deletePrefix(bgCtx, measID, prefixSubwellData)
		r.deletePrefix(bgCtx, measID, prefixImageData)

		r.logger.Info("measurement data deleted", "meas_id", measID)
	}()
	return nil
}

func (r *Router) deletePrefix(ctx context.Context, measID int64, prefix string) {
	keys, err := r.blobs.List(ctx, measID, prefix)
	if err != nil {
		r.logger.Error("delete listing failed", "meas_id", measID, "prefix", prefix, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.blobs.DeleteBatch(ctx, measID, keys); err != nil {
		r.logger.Error("batch delete failed", "meas_id", measID, "prefix", prefix, "error", err)
	}
}

/*
 * Helpers
 */

func (r *Router) requireMeas(ctx context.Context, measID int64, shape string) (*Measurement, error) {
	meas, err := r.meta.Get(ctx, measID)
	if errors.Is(err, ErrNotFound) {
		return nil, validationf("cannot save %s: measurement with ID %d does not exist", shape, measID)
	}
	if err != nil {
		return nil, err
	}
	return meas, nil
}

func sortedInsert(names []string, name string) []string {
	names = append(names, name)
	slices.Sort(names)
	return names
}
