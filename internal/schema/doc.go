// Package schema defines the catalog of classes, collections, properties,
// attributes, and units that every store operation validates against.
//
// A Catalog is compiled once from a CUE definition (see Compile and Load),
// validated, and never mutated afterwards. Stores receive it by pointer at
// construction time and share it freely across goroutines.
//
// The catalog also precomputes the closed set of auxiliary tag kinds
// (Scenario, Data File, Timeslice, Variable) so that tag classification at
// read time is a map lookup, not a string comparison against class names.
package schema
