package patient

import "context"

// Repository persists patients. GetByHN returns (nil, nil) when the hospital
// number is not enrolled.
type Repository interface {
	GetByHN(ctx context.Context, hn string) (*Patient, error)
	ExistsByHN(ctx context.Context, hn string) (bool, error)
	HNByCitizenID(ctx context.Context, citizenID string) (string, error)
	Create(ctx context.Context, p *Patient) error
	SetLabDataFlag(ctx context.Context, hn string, ready bool) error
}
