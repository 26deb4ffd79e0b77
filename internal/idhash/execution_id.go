package idhash

import (
	"fmt"

	"github.com/google/uuid"
)

// executionNamespace scopes name-based execution UUIDs.
var executionNamespace = uuid.MustParse("6f1c0d1e-9a53-4b7e-8d0c-3c2b8f4a7e10")

// ComputeExecutionID computes a deterministic execution id.
// Formula: UUIDv5(namespace, order_id|tick_index)
// An order fills at most once, so the pair is unique within a session.
func ComputeExecutionID(orderID string, tickIndex int64) string {
	data := fmt.Sprintf("%s|%d", orderID, tickIndex)
	return uuid.NewSHA1(executionNamespace, []byte(data)).String()
}

// NewSessionID returns a random session id.
func NewSessionID() string {
	return uuid.NewString()
}
