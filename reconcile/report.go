// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reconcile

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/poiesic/docindex/core"
)

// State classifies what a run did with one document.
type State int

const (
	// StateNew means the document had no ledger record and was ingested.
	StateNew State = iota
	// StateClean means fingerprint and chunks all matched; nothing done.
	StateClean
	// StateRepair means the fingerprint matched but chunks were missing
	// and were re-inserted.
	StateRepair
	// StateStale means the fingerprint changed; the document was
	// deleted from the index and re-ingested.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateClean:
		return "clean"
	case StateRepair:
		return "repair"
	case StateStale:
		return "stale"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Failure records one document that could not be reconciled.
type Failure struct {
	Document core.DocumentID
	Err      error
}

// Report accumulates the outcome of a run. Safe for concurrent use by
// the worker pool.
type Report struct {
	skipped    atomic.Int64
	ingested   atomic.Int64
	repaired   atomic.Int64
	reingested atomic.Int64

	mu       sync.Mutex
	failures []Failure
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

func (r *Report) recordState(s State) {
	switch s {
	case StateClean:
		r.skipped.Add(1)
	case StateNew:
		r.ingested.Add(1)
	case StateRepair:
		r.repaired.Add(1)
	case StateStale:
		r.reingested.Add(1)
	}
}

func (r *Report) recordFailure(doc core.DocumentID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, Failure{Document: doc, Err: err})
}

// Skipped counts documents whose state was already consistent.
func (r *Report) Skipped() int64 { return r.skipped.Load() }

// Ingested counts documents ingested for the first time.
func (r *Report) Ingested() int64 { return r.ingested.Load() }

// Repaired counts documents whose missing chunks were re-inserted.
func (r *Report) Repaired() int64 { return r.repaired.Load() }

// Reingested counts changed documents that were re-ingested.
func (r *Report) Reingested() int64 { return r.reingested.Load() }

// Failed counts documents that could not be reconciled.
func (r *Report) Failed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.failures))
}

// Failures returns a copy of the per-document failures.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// String summarizes the report for logs.
func (r *Report) String() string {
	return fmt.Sprintf("skipped=%d ingested=%d repaired=%d reingested=%d failed=%d",
		r.Skipped(), r.Ingested(), r.Repaired(), r.Reingested(), r.Failed())
}
