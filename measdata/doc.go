// Package measdata routes the three measurement data shapes onto their
// backing stores and enforces the write-once invariants of the data model.
//
// Well data (one value per well per column) lives in the column store.
// Subwell data (one array per well per column) and image data (one
// codestream per well per channel) live in the object store, one object
// each. The Router validates writes against the plate geometry, keeps the
// measurement's column/channel registries in sync with successful writes,
// and fans multi-object operations out across bounded worker groups.
package measdata
