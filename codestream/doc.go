// Package codestream gives streaming image codecs random access to remote
// image codestreams without refetching whole objects.
//
// An Accessor maps one immutable codestream onto a table of fixed-size
// chunks, fetched lazily and in parallel as byte ranges are requested. The
// AccessorCache bounds the number and weight of live accessors across
// repeated reads of the same images.
package codestream
