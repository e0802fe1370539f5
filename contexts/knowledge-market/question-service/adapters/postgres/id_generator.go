package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator issues random identifiers for events and outbox rows.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
