// Package outbound defines the outbound port interfaces for reaching the
// upstream CRM. Adapters implement these against the vendor REST API.
package outbound

import (
	"context"

	"github.com/crmbridge/crmbridge/internal/domain/record"
)

// RecordProvider is the outbound port for CRM records. Every method maps to
// one upstream operation; implementations own pagination, encoding, and the
// vendor response envelope.
type RecordProvider interface {
	ListDeals(ctx context.Context, filter record.DealFilter) ([]record.Deal, error)
	SearchDeals(ctx context.Context, term string, filter record.DealFilter) ([]record.Deal, error)
	GetDeal(ctx context.Context, id int) (*record.Deal, error)
	CreateDeal(ctx context.Context, input record.NewDeal) (*record.Deal, error)

	ListPersons(ctx context.Context) ([]record.Person, error)
	SearchPersons(ctx context.Context, term string) ([]record.Person, error)
	CreatePerson(ctx context.Context, input record.NewPerson) (*record.Person, error)

	ListOrganizations(ctx context.Context) ([]record.Organization, error)
	SearchOrganizations(ctx context.Context, term string) ([]record.Organization, error)
	CreateOrganization(ctx context.Context, input record.NewOrganization) (*record.Organization, error)

	ListPipelines(ctx context.Context) ([]record.Pipeline, error)
	ListStages(ctx context.Context, pipelineID int) ([]record.Stage, error)
}
