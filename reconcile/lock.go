package reconcile

import (
	"sync"

	"github.com/poiesic/docindex/core"
)

// docLocks serializes work per document identity so a watch-triggered
// run and a manual run never reconcile the same document concurrently.
type docLocks struct {
	locks sync.Map // core.DocumentID -> *sync.Mutex
}

// lock acquires the mutex for a document and returns its unlock func.
func (l *docLocks) lock(doc core.DocumentID) func() {
	v, _ := l.locks.LoadOrStore(doc, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
