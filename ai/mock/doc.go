// Package mock provides deterministic, offline implementations of the ai
// contracts for tests: embeddings derived from content hashes and a
// field extractor that fabricates a stable row. No network access, no
// model servers.
package mock
