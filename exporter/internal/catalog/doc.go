// Package catalog is the fixed table of series the exporter publishes and
// the per-scrape container that holds their samples.
//
// Every definition has a name, help text and an ordered label schema. The
// table is closed: direct-mapping metrics fed from one record field each,
// plus five classifier series (direction, threshold, mult1, mult2, value)
// for each of the ten known measured-parameter kinds.
//
// A Set is built fresh for every scrape and rendered in the text exposition
// format. Families without samples still render their HELP and TYPE lines.
package catalog
