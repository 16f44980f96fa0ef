// Package pipedrive implements the CRM record provider against the
// Pipedrive REST API v1.
package pipedrive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/crmbridge/crmbridge/internal/domain/record"
)

// maxResponseBodySize caps the decoded upstream body. The vendor paginates
// at 500 records, so anything larger is not a legitimate response.
const maxResponseBodySize = 10 * 1024 * 1024 // 10MB

// Client talks to the Pipedrive REST API. All methods return typed records;
// the vendor's success/data envelope never leaves this package.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the derived company URL. Used in tests to point the
// client at a local server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a client for the given company domain and API token.
// The domain is the company slug, not a full URL.
func NewClient(domain, apiToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  fmt.Sprintf("https://%s.pipedrive.com/api/v1", domain),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the vendor's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// searchData is the nested shape of search endpoints: the matches live at
// data.items[].item.
type searchData struct {
	Items []struct {
		Item json.RawMessage `json:"item"`
	} `json:"items"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_token", c.apiToken)

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("upstream returned malformed JSON (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("upstream error (status %d): %s", resp.StatusCode, msg)
	}
	return env.Data, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	return decodeData(data, out)
}

func (c *Client) search(ctx context.Context, path, term string, decode func(json.RawMessage) error) error {
	query := url.Values{}
	query.Set("term", term)

	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}

	var sd searchData
	if err := decodeData(data, &sd); err != nil {
		return err
	}
	for _, it := range sd.Items {
		if err := decode(it.Item); err != nil {
			return err
		}
	}
	return nil
}

// decodeData unmarshals the data payload. A JSON null (empty collection in
// the vendor API) leaves out untouched.
func decodeData(data json.RawMessage, out any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode upstream data: %w", err)
	}
	return nil
}

// ListDeals fetches deals, pushing the status filter upstream when set and
// applying the full filter locally afterwards.
func (c *Client) ListDeals(ctx context.Context, filter record.DealFilter) ([]record.Deal, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}

	var deals []record.Deal
	if err := c.get(ctx, "/deals", query, &deals); err != nil {
		return nil, err
	}
	return filter.Apply(deals), nil
}

// SearchDeals finds deals matching the term. The filter is applied once,
// locally, since the search endpoint only takes the term.
func (c *Client) SearchDeals(ctx context.Context, term string, filter record.DealFilter) ([]record.Deal, error) {
	deals := []record.Deal{}
	err := c.search(ctx, "/deals/search", term, func(item json.RawMessage) error {
		var d record.Deal
		if err := json.Unmarshal(item, &d); err != nil {
			return fmt.Errorf("failed to decode search item: %w", err)
		}
		deals = append(deals, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return filter.Apply(deals), nil
}

// GetDeal fetches a single deal by ID.
func (c *Client) GetDeal(ctx context.Context, id int) (*record.Deal, error) {
	var deal record.Deal
	if err := c.get(ctx, "/deals/"+strconv.Itoa(id), nil, &deal); err != nil {
		return nil, err
	}
	if deal.ID == 0 {
		return nil, fmt.Errorf("deal %d not found", id)
	}
	return &deal, nil
}

// CreateDeal creates a deal from the accepted input fields.
func (c *Client) CreateDeal(ctx context.Context, input record.NewDeal) (*record.Deal, error) {
	body := map[string]any{"title": input.Title}
	if input.Value != 0 {
		body["value"] = input.Value
	}
	if input.Currency != "" {
		body["currency"] = input.Currency
	}
	if input.PersonID != 0 {
		body["person_id"] = input.PersonID
	}
	if input.OrgID != 0 {
		body["org_id"] = input.OrgID
	}
	if input.StageID != 0 {
		body["stage_id"] = input.StageID
	}
	if input.Status != "" {
		body["status"] = input.Status
	}

	var deal record.Deal
	if err := c.post(ctx, "/deals", body, &deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

// ListPersons fetches all contacts.
func (c *Client) ListPersons(ctx context.Context) ([]record.Person, error) {
	var raw []personPayload
	if err := c.get(ctx, "/persons", nil, &raw); err != nil {
		return nil, err
	}
	persons := make([]record.Person, 0, len(raw))
	for _, p := range raw {
		persons = append(persons, p.toRecord())
	}
	return persons, nil
}

// SearchPersons finds contacts matching the term.
func (c *Client) SearchPersons(ctx context.Context, term string) ([]record.Person, error) {
	persons := []record.Person{}
	err := c.search(ctx, "/persons/search", term, func(item json.RawMessage) error {
		var p personPayload
		if err := json.Unmarshal(item, &p); err != nil {
			return fmt.Errorf("failed to decode search item: %w", err)
		}
		persons = append(persons, p.toRecord())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return persons, nil
}

// CreatePerson creates a contact.
func (c *Client) CreatePerson(ctx context.Context, input record.NewPerson) (*record.Person, error) {
	body := map[string]any{"name": input.Name}
	if input.Email != "" {
		body["email"] = input.Email
	}
	if input.Phone != "" {
		body["phone"] = input.Phone
	}
	if input.OrgID != 0 {
		body["org_id"] = input.OrgID
	}

	var p personPayload
	if err := c.post(ctx, "/persons", body, &p); err != nil {
		return nil, err
	}
	person := p.toRecord()
	return &person, nil
}

// ListOrganizations fetches all company records.
func (c *Client) ListOrganizations(ctx context.Context) ([]record.Organization, error) {
	var orgs []record.Organization
	if err := c.get(ctx, "/organizations", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// SearchOrganizations finds company records matching the term.
func (c *Client) SearchOrganizations(ctx context.Context, term string) ([]record.Organization, error) {
	orgs := []record.Organization{}
	err := c.search(ctx, "/organizations/search", term, func(item json.RawMessage) error {
		var o record.Organization
		if err := json.Unmarshal(item, &o); err != nil {
			return fmt.Errorf("failed to decode search item: %w", err)
		}
		orgs = append(orgs, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

// CreateOrganization creates a company record.
func (c *Client) CreateOrganization(ctx context.Context, input record.NewOrganization) (*record.Organization, error) {
	var org record.Organization
	if err := c.post(ctx, "/organizations", map[string]any{"name": input.Name}, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// ListPipelines fetches all pipelines.
func (c *Client) ListPipelines(ctx context.Context) ([]record.Pipeline, error) {
	var pipelines []record.Pipeline
	if err := c.get(ctx, "/pipelines", nil, &pipelines); err != nil {
		return nil, err
	}
	return pipelines, nil
}

// ListStages fetches stages, scoped to one pipeline when pipelineID is set.
func (c *Client) ListStages(ctx context.Context, pipelineID int) ([]record.Stage, error) {
	query := url.Values{}
	if pipelineID != 0 {
		query.Set("pipeline_id", strconv.Itoa(pipelineID))
	}

	var stages []record.Stage
	if err := c.get(ctx, "/stages", query, &stages); err != nil {
		return nil, err
	}
	return stages, nil
}
