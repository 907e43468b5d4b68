package ports

import (
	"context"

	"github.com/nset-ornl/covid19/internal/domain"
)

// Geocoder resolves coordinates to an administrative region-code block,
// trimmed to the requested scope. Implementations are expected to retry
// transient failures internally according to their configured policy.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64, scope domain.Scope) (domain.RegionCodes, error)
}
