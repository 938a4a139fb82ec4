package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Suffixes for the two legs of a transfer.
const (
	TransferOutSuffix = "-OUT"
	TransferInSuffix  = "-IN"
)

// NewReference returns a time-prefixed reference with a random suffix,
// e.g. TXN-1718000000000-9F86D081884C.
func NewReference(at time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("TXN-%d-%s", at.UnixMilli(), strings.ToUpper(random[:12]))
}

// TransferReferences derives the correlated debit and credit references from a base.
func TransferReferences(base string) (out, in string) {
	return base + TransferOutSuffix, base + TransferInSuffix
}
