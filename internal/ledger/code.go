package ledger

import (
	"fmt"
	"math/rand"
	"time"
)

// newOrderCode builds the human-readable order code the bank callback is
// correlated by: a fixed prefix, a second-resolution timestamp and a short
// random suffix. Uniqueness is probabilistic; the store does not enforce it.
func newOrderCode(now time.Time) string {
	return fmt.Sprintf("ORD%s%04X", now.Format("20060102150405"), rand.Intn(0x10000))
}
