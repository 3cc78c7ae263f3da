// Package resolve computes effective property values from the raw data
// rows a store holds. Raw rows partition into slots keyed by membership,
// property, and band; within a slot a row tagged with the active
// scenario overrides the untagged base row, and rows tagged with other
// scenarios are ignored. Auxiliary tags (data files, timeslices,
// variables) annotate the winning row rather than competing for it.
package resolve
