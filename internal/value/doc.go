// Package value provides the snapshot value model for rewind.
//
// A snapshot is an Object: a mapping from field name to a Value. Values are
// a sealed set of JSON-compatible types (Null, String, Int, Bool, Array,
// Object). There is no float type; numbers are always int64 so that the
// canonical encoding, and therefore snapshot fingerprints, are
// deterministic.
//
// This package imports nothing internal. Every other package that handles
// record data builds on it.
package value
