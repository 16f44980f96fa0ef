package pipedrive

import (
	"context"

	"github.com/crmbridge/crmbridge/internal/domain/ratelimit"
	"github.com/crmbridge/crmbridge/internal/domain/record"
	"github.com/crmbridge/crmbridge/internal/port/outbound"
)

// Limited wraps a record provider so every upstream call passes through the
// rate gate. Tool handlers never talk to the upstream directly.
type Limited struct {
	provider outbound.RecordProvider
	gate     *ratelimit.Gate
}

// NewLimited builds the gated decorator.
func NewLimited(provider outbound.RecordProvider, gate *ratelimit.Gate) *Limited {
	return &Limited{provider: provider, gate: gate}
}

func (l *Limited) ListDeals(ctx context.Context, filter record.DealFilter) ([]record.Deal, error) {
	var out []record.Deal
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.ListDeals(ctx, filter)
		return err
	})
	return out, err
}

func (l *Limited) SearchDeals(ctx context.Context, term string, filter record.DealFilter) ([]record.Deal, error) {
	var out []record.Deal
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.SearchDeals(ctx, term, filter)
		return err
	})
	return out, err
}

func (l *Limited) GetDeal(ctx context.Context, id int) (*record.Deal, error) {
	var out *record.Deal
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.GetDeal(ctx, id)
		return err
	})
	return out, err
}

func (l *Limited) CreateDeal(ctx context.Context, input record.NewDeal) (*record.Deal, error) {
	var out *record.Deal
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.CreateDeal(ctx, input)
		return err
	})
	return out, err
}

func (l *Limited) ListPersons(ctx context.Context) ([]record.Person, error) {
	var out []record.Person
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.ListPersons(ctx)
		return err
	})
	return out, err
}

func (l *Limited) SearchPersons(ctx context.Context, term string) ([]record.Person, error) {
	var out []record.Person
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.SearchPersons(ctx, term)
		return err
	})
	return out, err
}

func (l *Limited) CreatePerson(ctx context.Context, input record.NewPerson) (*record.Person, error) {
	var out *record.Person
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.CreatePerson(ctx, input)
		return err
	})
	return out, err
}

func (l *Limited) ListOrganizations(ctx context.Context) ([]record.Organization, error) {
	var out []record.Organization
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.ListOrganizations(ctx)
		return err
	})
	return out, err
}

func (l *Limited) SearchOrganizations(ctx context.Context, term string) ([]record.Organization, error) {
	var out []record.Organization
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.SearchOrganizations(ctx, term)
		return err
	})
	return out, err
}

func (l *Limited) CreateOrganization(ctx context.Context, input record.NewOrganization) (*record.Organization, error) {
	var out *record.Organization
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.CreateOrganization(ctx, input)
		return err
	})
	return out, err
}

func (l *Limited) ListPipelines(ctx context.Context) ([]record.Pipeline, error) {
	var out []record.Pipeline
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.ListPipelines(ctx)
		return err
	})
	return out, err
}

func (l *Limited) ListStages(ctx context.Context, pipelineID int) ([]record.Stage, error) {
	var out []record.Stage
	err := l.gate.Do(ctx, func() error {
		var err error
		out, err = l.provider.ListStages(ctx, pipelineID)
		return err
	})
	return out, err
}
