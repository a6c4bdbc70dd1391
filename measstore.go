package measstore

import (
	"context"
	"log/slog"

	"github.com/openanalytics/measstore/blobstore"
	"github.com/openanalytics/measstore/codestream"
	"github.com/openanalytics/measstore/columnstore"
	"github.com/openanalytics/measstore/ingest"
	"github.com/openanalytics/measstore/measdata"
)

// Service is the measurement data storage engine: it wires the data router,
// the codestream accessor cache and the asynchronous ingestion queue over a
// blob store, a column store and a measurement metadata store.
//
// Synchronous callers (REST/GraphQL front ends) use the Set*/read methods
// directly; the event-driven ingestion pipeline hands messages to the
// Enqueue* methods and a fixed worker pool drains them into the same router.
type Service struct {
	router    *measdata.Router
	accessors *codestream.AccessorCache
	queue     *ingest.Queue
	logger    *slog.Logger
	metrics   MetricsCollector
}

// New creates a Service over the given stores and starts its worker pool.
// Call Close to drain and stop it.
func New(blobs blobstore.Store, columns columnstore.Store, meta measdata.MeasurementStore, opts ...Option) *Service {
	o := applyOptions(opts)

	s := &Service{
		logger:  o.logger,
		metrics: o.metrics,
	}

	s.router = measdata.NewRouter(blobs, columns, meta,
		measdata.WithCodec(o.codec),
		measdata.WithFanout(o.fanout),
		measdata.WithLogger(o.logger),
	)

	s.accessors = codestream.NewAccessorCache(
		func(key codestream.Key) codestream.ByteSource {
			return &imageByteSource{router: s.router, key: key, metrics: s.metrics}
		},
		o.cacheOptions,
		o.logger,
	)

	s.queue = ingest.NewQueue(o.queueCapacity, o.queueWorkers,
		ingest.WithLogger(o.logger),
		ingest.WithResultHook(func(err error) {
			s.metrics.TaskDone(err)
			s.metrics.QueueDepth(s.queue.Depth())
		}),
	)
	s.queue.Start(context.Background())

	return s
}

// Router exposes the underlying data router for synchronous callers.
func (s *Service) Router() *measdata.Router {
	return s.router
}

// CodestreamAccessor returns the codec-facing byte source for one channel
// image, cached across calls. The returned accessor exposes Size and
// GetBytes, which is all a progressive decoder needs.
func (s *Service) CodestreamAccessor(ctx context.Context, measID int64, wellNr int, channel string) (*codestream.Accessor, error) {
	accessor, err := s.accessors.Get(ctx, codestream.Key{MeasID: measID, WellNr: wellNr, Channel: channel})
	if err != nil {
		return nil, err
	}
	hits, misses := s.accessors.Stats()
	s.metrics.AccessorCacheStats(hits, misses)
	return accessor, nil
}

// EnqueueWellData queues an asynchronous well-data save. Malformed messages
// are discarded with a warning, never queued. Blocks while the queue is
// full.
func (s *Service) EnqueueWellData(ctx context.Context, msg ingest.WellDataMessage) error {
	if err := msg.Validate(); err != nil {
		s.logger.Warn("ignoring invalid saveWellData request", "error", err)
		return nil
	}
	if err := s.queue.Enqueue(ctx, func(ctx context.Context) error {
		return s.router.SetWellColumn(ctx, msg.MeasurementID, msg.Column, msg.Data)
	}); err != nil {
		return err
	}
	s.metrics.QueueDepth(s.queue.Depth())
	return nil
}

// EnqueueSubwellData queues an asynchronous subwell-data save. Malformed
// messages are discarded with a warning, never queued. Blocks while the
// queue is full.
func (s *Service) EnqueueSubwellData(ctx context.Context, msg ingest.SubwellDataMessage) error {
	if err := msg.Validate(); err != nil {
		s.logger.Warn("ignoring invalid saveSubwellData request", "error", err)
		return nil
	}
	if err := s.queue.Enqueue(ctx, func(ctx context.Context) error {
		return s.router.SetSubwellWellData(ctx, msg.MeasurementID, msg.WellNr, msg.Column, msg.Data)
	}); err != nil {
		return err
	}
	s.metrics.QueueDepth(s.queue.Depth())
	return nil
}

// QueueDepth returns the number of pending ingestion tasks.
func (s *Service) QueueDepth() int {
	return s.queue.Depth()
}

// Close drains the ingestion queue, stops the workers and waits for
// background deletions to finish.
func (s *Service) Close() {
	s.queue.Close()
	s.router.Wait()
}

// imageByteSource adapts the router's image read path to the codestream
// ByteSource interface for one (measurement, well, channel).
type imageByteSource struct {
	router  *measdata.Router
	key     codestream.Key
	metrics MetricsCollector
}

func (s *imageByteSource) Size(ctx context.Context) (int64, error) {
	return s.router.ImageDataSize(ctx, s.key.MeasID, s.key.WellNr, s.key.Channel)
}

func (s *imageByteSource) ReadRange(ctx context.Context, offset int64, length int) ([]byte, error) {
	s.metrics.ChunkFetched()
	return s.router.ImageDataRange(ctx, s.key.MeasID, s.key.WellNr, s.key.Channel, offset, length)
}
