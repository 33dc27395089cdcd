// Package ingest pulls events and cinema listings from external sources
// into the catalog.
//
// One run walks every configured Adapter in order. For each record the
// adapter yields, the Normalizer fixes shape-level defects, the Matcher
// resolves the free-text venue to a canonical venue, and the Engine decides
// insert, update or skip against the stored catalog using the record's
// source identity. Failures are isolated per record and per source; a run
// only fails as a whole when every source failed.
//
// The Auditor is independent of runs and reports catalog rows that lost
// every contributing source.
package ingest
