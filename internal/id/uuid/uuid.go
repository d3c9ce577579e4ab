// Package uuid generates run identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// RunID returns configured when it is set, otherwise a fresh UUID7. Local runs
// have no scheduler-provided identifier.
func (g Generator) RunID(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return g.NewID()
}
