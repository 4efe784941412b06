// Package grid reconciles independently collected daily series into one
// regular time series.
//
// The merge runs a fixed sequence: concatenate, stable sort by timestamp,
// first-wins deduplication, canonical grid construction and exact-match
// reindexing. Deduplication happens before reindexing so that at most one
// source record can land on a grid slot.
package grid
