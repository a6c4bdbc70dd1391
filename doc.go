// Package measstore is a storage engine for high-throughput plate
// measurement data. It persists three data shapes across two backing
// stores: per-well numeric columns in a relational column store, and
// per-well value arrays and image codestreams as objects in a blob store.
//
// On top of the stores it provides chunked random-access reading of remote
// image codestreams for progressive decoders, and a bounded asynchronous
// ingestion queue that gives the write path backpressure.
package measstore
