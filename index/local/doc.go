// Package local implements the index contract on an embedded BadgerDB
// store: entries are MUS-serialized under their chunk identity, a
// secondary key orders them by document, and search is a brute-force
// cosine scan. Suitable for corpora that fit on one machine; use the
// qdrant adapter for anything larger.
package local
