package badger

import (
	"fmt"

	"github.com/poiesic/docindex/core"
)

// Key prefixes for different data types. The ledger and the embedded
// vector index may share one Backend, so prefixes must stay disjoint.
const (
	recordPrefix = "docrec"
)

// makeRecordKey generates a key for a ledger record by document identity.
func makeRecordKey(doc core.DocumentID) []byte {
	return []byte(fmt.Sprintf("%s:%s", recordPrefix, doc))
}
