// Package ingest provides the bounded asynchronous write path: validated
// save requests from the external message bus are enqueued as tasks and
// drained into the data router by a fixed worker pool. A full queue blocks
// the producer, which is how backpressure propagates to the bus consumer.
package ingest
