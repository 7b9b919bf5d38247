package recommendation

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads classified results for prompting and persists the
// generated text. InstanceSummary returns (nil, nil) when the instance has
// no measurement results.
type Repository interface {
	InstanceSummary(ctx context.Context, instanceID uuid.UUID) (*InstanceSummary, error)
	Create(ctx context.Context, rec *Recommendation) error
}
