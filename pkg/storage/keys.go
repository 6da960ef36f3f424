package storage

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema, one namespace per paper account:
//
//	ord:<address>:<orderID>         -> Order (latest state)
//	fill:<address>:<unixnano>:<id>  -> FillRecord
//	risk:<address>:<unixnano>       -> risk.Report
//	snap:<address>                  -> Snapshot (latest)
//
// Timestamps are zero-padded to 20 digits so keys sort chronologically.
const (
	prefixOrder    = "ord:"
	prefixFill     = "fill:"
	prefixRisk     = "risk:"
	prefixSnapshot = "snap:"
)

func orderKey(addr common.Address, orderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixOrder, addr.Hex(), orderID))
}

func orderPrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOrder, addr.Hex()))
}

func fillKey(addr common.Address, at time.Time, orderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixFill, addr.Hex(), at.UnixNano(), orderID))
}

func fillPrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixFill, addr.Hex()))
}

func riskKey(addr common.Address, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixRisk, addr.Hex(), at.UnixNano()))
}

func riskPrefix(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixRisk, addr.Hex()))
}

func snapshotKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixSnapshot, addr.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
