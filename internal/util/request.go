package util

import (
	"github.com/google/uuid"
)

// GenerateRequestID returns a short ID that ends up in the X-Request-ID header and log lines
func GenerateRequestID() string {
	id := uuid.New().String()
	return id[:8]
}
