package directory

import (
	"context"

	"nexus/models"
)

// Service resolves candidate providers for a campaign. PlacesDirectory does
// live lookups; the fallback roster keeps the swarm functional without one.
type Service interface {
	Search(ctx context.Context, serviceType, location string, limit int) ([]models.Provider, error)
}
