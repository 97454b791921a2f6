package util

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateTransactionID returns the caller-facing journal entry token: a UUID
// with the dashes stripped, 32 hex characters.
func GenerateTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
