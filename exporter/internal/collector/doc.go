// Package collector runs one scrape: the fixed sequence of KDP calls for the
// configured resource, mapped into a fresh catalog.Set.
//
// Steps run in order and exactly once. A failed step contributes no samples
// and never stops the steps after it. Steps scoped to the resource are
// skipped while its id is unknown; the resolved id is cached so a failing
// resource listing does not blank the whole scrape.
package collector
