package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// gridIDBytes is the number of hash bytes kept in a grid id.
const gridIDBytes = 12

// ComputeGridID computes a deterministic, compact grid id.
// Formula: "grid_" + base58(SHA256(session_id|sequence)[:12])
func ComputeGridID(sessionID string, sequence int) string {
	data := fmt.Sprintf("%s|%d", sessionID, sequence)
	hash := sha256.Sum256([]byte(data))
	return "grid_" + base58.Encode(hash[:gridIDBytes])
}

// ComputeOrderID derives an order id from its grid and level index.
func ComputeOrderID(gridID string, level int) string {
	return fmt.Sprintf("%s-%03d", gridID, level)
}
