package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/crmbridge/crmbridge/internal/domain/record"
	"github.com/crmbridge/crmbridge/internal/domain/tool"
	"github.com/crmbridge/crmbridge/internal/port/outbound"
)

// dealStatuses are the upstream deal states accepted by filters and writes.
var dealStatuses = []string{"open", "won", "lost", "deleted"}

// NewCatalog builds the full tool and prompt catalog over the CRM provider.
func NewCatalog(provider outbound.RecordProvider) (*tool.Catalog, error) {
	return tool.NewCatalog(crmTools(provider), crmPrompts())
}

func crmTools(p outbound.RecordProvider) []tool.Tool {
	return []tool.Tool{
		{
			Name:        "list_deals",
			Description: "List deals, optionally filtered by status, stage, or pipeline.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"status":      {Type: "string", Description: "Deal status filter.", Enum: dealStatuses},
				"stage_id":    {Type: "integer", Description: "Only deals in this stage."},
				"pipeline_id": {Type: "integer", Description: "Only deals in this pipeline."},
			}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				deals, err := p.ListDeals(ctx, record.DealFilter{
					Status:     tool.StringArg(args, "status"),
					StageID:    tool.IntArg(args, "stage_id"),
					PipelineID: tool.IntArg(args, "pipeline_id"),
				})
				if err != nil {
					return "", err
				}
				return renderList("deals", len(deals), deals)
			},
		},
		{
			Name:        "search_deals",
			Description: "Search deals by title or related keywords, optionally filtered by status, stage, or pipeline.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"term":        {Type: "string", Description: "Search term, at least two characters."},
				"status":      {Type: "string", Description: "Deal status filter.", Enum: dealStatuses},
				"stage_id":    {Type: "integer", Description: "Only deals in this stage."},
				"pipeline_id": {Type: "integer", Description: "Only deals in this pipeline."},
			}, "term"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				deals, err := p.SearchDeals(ctx, tool.StringArg(args, "term"), record.DealFilter{
					Status:     tool.StringArg(args, "status"),
					StageID:    tool.IntArg(args, "stage_id"),
					PipelineID: tool.IntArg(args, "pipeline_id"),
				})
				if err != nil {
					return "", err
				}
				return renderList("deals", len(deals), deals)
			},
		},
		{
			Name:        "get_deal",
			Description: "Fetch one deal by its numeric ID.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"deal_id": {Type: "integer", Description: "Deal ID."},
			}, "deal_id"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				deal, err := p.GetDeal(ctx, tool.IntArg(args, "deal_id"))
				if err != nil {
					return "", err
				}
				return renderRecord(deal)
			},
		},
		{
			Name:        "create_deal",
			Description: "Create a new deal.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"title":     {Type: "string", Description: "Deal title."},
				"value":     {Type: "number", Description: "Monetary value."},
				"currency":  {Type: "string", Description: "ISO currency code."},
				"person_id": {Type: "integer", Description: "Linked contact ID."},
				"org_id":    {Type: "integer", Description: "Linked organization ID."},
				"stage_id":  {Type: "integer", Description: "Initial stage ID."},
				"status":    {Type: "string", Description: "Initial status.", Enum: dealStatuses},
			}, "title"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				deal, err := p.CreateDeal(ctx, record.NewDeal{
					Title:    tool.StringArg(args, "title"),
					Value:    tool.FloatArg(args, "value"),
					Currency: tool.StringArg(args, "currency"),
					PersonID: tool.IntArg(args, "person_id"),
					OrgID:    tool.IntArg(args, "org_id"),
					StageID:  tool.IntArg(args, "stage_id"),
					Status:   tool.StringArg(args, "status"),
				})
				if err != nil {
					return "", err
				}
				return renderRecord(deal)
			},
		},
		{
			Name:        "list_persons",
			Description: "List all contacts.",
			Schema:      tool.ObjectSchema(nil),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				persons, err := p.ListPersons(ctx)
				if err != nil {
					return "", err
				}
				return renderList("persons", len(persons), persons)
			},
		},
		{
			Name:        "search_persons",
			Description: "Search contacts by name, email, or phone.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"term": {Type: "string", Description: "Search term, at least two characters."},
			}, "term"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				persons, err := p.SearchPersons(ctx, tool.StringArg(args, "term"))
				if err != nil {
					return "", err
				}
				return renderList("persons", len(persons), persons)
			},
		},
		{
			Name:        "create_person",
			Description: "Create a new contact.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"name":   {Type: "string", Description: "Full name."},
				"email":  {Type: "string", Description: "Primary email address."},
				"phone":  {Type: "string", Description: "Primary phone number."},
				"org_id": {Type: "integer", Description: "Linked organization ID."},
			}, "name"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				person, err := p.CreatePerson(ctx, record.NewPerson{
					Name:  tool.StringArg(args, "name"),
					Email: tool.StringArg(args, "email"),
					Phone: tool.StringArg(args, "phone"),
					OrgID: tool.IntArg(args, "org_id"),
				})
				if err != nil {
					return "", err
				}
				return renderRecord(person)
			},
		},
		{
			Name:        "list_organizations",
			Description: "List all organizations.",
			Schema:      tool.ObjectSchema(nil),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				orgs, err := p.ListOrganizations(ctx)
				if err != nil {
					return "", err
				}
				return renderList("organizations", len(orgs), orgs)
			},
		},
		{
			Name:        "search_organizations",
			Description: "Search organizations by name.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"term": {Type: "string", Description: "Search term, at least two characters."},
			}, "term"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				orgs, err := p.SearchOrganizations(ctx, tool.StringArg(args, "term"))
				if err != nil {
					return "", err
				}
				return renderList("organizations", len(orgs), orgs)
			},
		},
		{
			Name:        "create_organization",
			Description: "Create a new organization.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"name": {Type: "string", Description: "Organization name."},
			}, "name"),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				org, err := p.CreateOrganization(ctx, record.NewOrganization{
					Name: tool.StringArg(args, "name"),
				})
				if err != nil {
					return "", err
				}
				return renderRecord(org)
			},
		},
		{
			Name:        "list_pipelines",
			Description: "List all sales pipelines.",
			Schema:      tool.ObjectSchema(nil),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				pipelines, err := p.ListPipelines(ctx)
				if err != nil {
					return "", err
				}
				return renderList("pipelines", len(pipelines), pipelines)
			},
		},
		{
			Name:        "list_stages",
			Description: "List pipeline stages, optionally scoped to one pipeline.",
			Schema: tool.ObjectSchema(map[string]tool.Property{
				"pipeline_id": {Type: "integer", Description: "Only stages of this pipeline."},
			}),
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				stages, err := p.ListStages(ctx, tool.IntArg(args, "pipeline_id"))
				if err != nil {
					return "", err
				}
				return renderList("stages", len(stages), stages)
			},
		},
	}
}

func crmPrompts() []tool.Prompt {
	return []tool.Prompt{
		{
			Name:        "pipeline_review",
			Description: "Walk through every pipeline and summarize deal health per stage.",
			Text: func() string {
				return "Review the sales pipelines. Use list_pipelines and list_stages to map the " +
					"funnel, then list_deals per pipeline to summarize: total open value per stage, " +
					"deals that look stuck, and the three largest open deals. Finish with concrete " +
					"next actions for the team."
			},
		},
		{
			Name:        "find_stalled_deals",
			Description: "Identify open deals that have not moved recently.",
			Text: func() string {
				return "Find stalled deals. Call list_deals with status open and inspect each " +
					"deal's update_time. Flag anything untouched for more than 14 days, group the " +
					"results by stage, and suggest one follow-up step per stalled deal."
			},
		},
		{
			Name:        "new_lead_intake",
			Description: "Register a new lead as organization, contact, and deal.",
			Text: func() string {
				return "Register a new lead. First search_organizations to avoid duplicates, " +
					"creating the organization only when it is missing. Then create_person linked to " +
					"the organization and create_deal for the opportunity. Report the IDs of " +
					"everything created."
			},
		},
	}
}

// renderList serializes a collection with a short count header so the model
// never has to infer emptiness from bare brackets.
func renderList(kind string, n int, items any) (string, error) {
	if n == 0 {
		return fmt.Sprintf("No %s found.", kind), nil
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", kind, err)
	}
	return fmt.Sprintf("Found %d %s:\n%s", n, kind, payload), nil
}

func renderRecord(item any) (string, error) {
	payload, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render record: %w", err)
	}
	return string(payload), nil
}
