package measstore

import (
	"log/slog"

	"github.com/openanalytics/measstore/codec"
	"github.com/openanalytics/measstore/codestream"
)

type options struct {
	logger        *slog.Logger
	metrics       MetricsCollector
	codec         codec.Float32Codec
	fanout        int
	queueCapacity int
	queueWorkers  int
	cacheOptions  codestream.CacheOptions
}

// Option configures Service construction.
type Option func(*options)

func applyOptions(opts []Option) *options {
	o := &options{
		logger:        slog.Default(),
		metrics:       NopMetrics{},
		codec:         codec.Default,
		queueCapacity: 50,
		queueWorkers:  20,
		cacheOptions:  codestream.DefaultCacheOptions(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector. Default: NopMetrics.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithCodec sets the codec for subwell value blobs.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Float32Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithFanout caps concurrent store calls per multi-object operation.
func WithFanout(n int) Option {
	return func(o *options) {
		o.fanout = n
	}
}

// WithQueue sets the ingestion queue capacity and worker pool size.
func WithQueue(capacity, workers int) Option {
	return func(o *options) {
		o.queueCapacity = capacity
		o.queueWorkers = workers
	}
}

// WithAccessorCache bounds the codestream accessor cache.
func WithAccessorCache(cacheOpts codestream.CacheOptions) Option {
	return func(o *options) {
		o.cacheOptions = cacheOpts
	}
}
