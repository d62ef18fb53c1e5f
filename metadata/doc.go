// Package metadata defines decoded key metadata and its binary encoding.
//
// Metadata describes what a key points at: a redirect to another key, a
// splitfile assembled from blocks, a manifest, or one of the archive and
// shortlink forms. The document form is a tagged variant ([Document]) so a
// metadata value always has exactly one type.
//
// The binary form is deterministic CBOR. [Parse] decodes it and [Marshal]
// encodes it.
package metadata
