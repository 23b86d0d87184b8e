package utils

import (
	"github.com/google/uuid"
)

// NewID returns a random identifier used for images, processed outputs and jobs.
func NewID() string {
	return uuid.New().String()
}
