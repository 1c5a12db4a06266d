package uid

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var seq atomic.Uint64

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// NewOrdered generates a unique identifier prefixed with the current time
// in epoch milliseconds and a process-local sequence number, so
// lexicographic order follows creation order even within the same
// millisecond. Used for queue item ids, which must replay in enqueue
// order.
func NewOrdered() string {
	return fmt.Sprintf("%013d-%08d-%s", time.Now().UnixMilli(), seq.Add(1), uuid.New().String())
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
