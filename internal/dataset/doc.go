// Package dataset loads declarative YAML model fragments and applies
// them to a store through the bulk pipeline. A dataset lists object
// batches, membership edges, and property records; Apply writes them in
// that order so later sections can reference what earlier ones created.
package dataset
