package labtest

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists test instances and measurement results. LatestPending
// returns (nil, nil) when the patient has no open instance for the template.
type Repository interface {
	CreateInstance(ctx context.Context, ti *TestInstance) error
	GetInstance(ctx context.Context, id uuid.UUID) (*TestInstance, error)
	LatestPending(ctx context.Context, hn string, templateID uuid.UUID) (*TestInstance, error)
	MarkCompleted(ctx context.Context, instanceID uuid.UUID) error

	UpsertResult(ctx context.Context, instanceID, typeID uuid.UUID, value float64) error
	TypesPresent(ctx context.Context, instanceID uuid.UUID) ([]uuid.UUID, error)
	ResultsNamed(ctx context.Context, instanceID uuid.UUID) ([]NamedResult, error)
	SetResultStatus(ctx context.Context, instanceID, typeID uuid.UUID, status string) error
}
