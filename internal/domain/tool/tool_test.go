package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewCatalog_RejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, map[string]any) (string, error) { return "", nil }

	_, err := NewCatalog([]Tool{
		{Name: "list_deals", Handler: noop},
		{Name: "list_deals", Handler: noop},
	}, nil)
	if err == nil {
		t.Error("NewCatalog() accepted duplicate tool names, want error")
	}

	_, err = NewCatalog(nil, []Prompt{
		{Name: "pipeline_review", Text: func() string { return "" }},
		{Name: "pipeline_review", Text: func() string { return "" }},
	})
	if err == nil {
		t.Error("NewCatalog() accepted duplicate prompt names, want error")
	}
}

func TestCatalog_ToolsInNameOrder(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, map[string]any) (string, error) { return "", nil }
	cat, err := NewCatalog([]Tool{
		{Name: "search_deals", Handler: noop},
		{Name: "create_deal", Handler: noop},
		{Name: "list_deals", Handler: noop},
	}, nil)
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}

	var names []string
	for _, tl := range cat.Tools() {
		names = append(names, tl.Name)
	}
	want := []string{"create_deal", "list_deals", "search_deals"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Tools() order = %v, want %v", names, want)
	}
}

func TestInputSchema_Validate(t *testing.T) {
	t.Parallel()

	schema := ObjectSchema(map[string]Property{
		"term":     {Type: "string"},
		"status":   {Type: "string", Enum: []string{"open", "won", "lost"}},
		"stage_id": {Type: "integer"},
		"value":    {Type: "number"},
		"strict":   {Type: "boolean"},
	}, "term")

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{"valid minimal", map[string]any{"term": "acme"}, ""},
		{"valid full", map[string]any{"term": "acme", "status": "open", "stage_id": float64(3), "value": 1.5, "strict": true}, ""},
		{"missing required", map[string]any{"status": "open"}, `missing required field "term"`},
		{"wrong type", map[string]any{"term": 7}, `field "term" must be a string`},
		{"enum violation", map[string]any{"term": "a", "status": "stalled"}, `field "status" must be one of`},
		{"fractional integer", map[string]any{"term": "a", "stage_id": 3.5}, `field "stage_id" must be an integer`},
		{"unknown field", map[string]any{"term": "a", "stge_id": 3}, `unknown field "stge_id"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := schema.Validate(tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if !strings.Contains(verr.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want substring %q", verr.Error(), tt.wantErr)
			}
		})
	}
}

func TestArgAccessors(t *testing.T) {
	t.Parallel()

	args := map[string]any{
		"term":     "acme",
		"stage_id": float64(4),
		"value":    99.5,
	}

	if got := StringArg(args, "term"); got != "acme" {
		t.Errorf("StringArg() = %q, want %q", got, "acme")
	}
	if got := StringArg(args, "missing"); got != "" {
		t.Errorf("StringArg(missing) = %q, want empty", got)
	}
	if got := IntArg(args, "stage_id"); got != 4 {
		t.Errorf("IntArg() = %d, want 4", got)
	}
	if got := FloatArg(args, "value"); got != 99.5 {
		t.Errorf("FloatArg() = %v, want 99.5", got)
	}
}
