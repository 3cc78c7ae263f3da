// Package store persists energy-model objects, memberships, and property
// data in a SQLite database laid out in the t_* entity-attribute-value
// schema used by model exchange files.
//
// A Store is created with Open and is safe for concurrent use; SQLite
// serializes writers internally and the connection pool is capped at a
// single connection. All mutating operations validate against the
// schema.Catalog supplied at Open before touching the database, so a
// failed call leaves no partial rows behind.
package store
