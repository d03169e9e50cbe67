package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// newOrderCode makes a short human-readable public order reference.
func newOrderCode() string {
	id := uuid.New().String()
	return "ORD-" + strings.ToUpper(id[:8])
}
