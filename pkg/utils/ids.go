package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed unique identifier, e.g. "lot_5f3a...".
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
