package rediswork

import (
	"github.com/google/uuid"
)

// NewID returns a UUIDv7. Every flush gets one as its flush_id log field, so
// ids sort in flush order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
