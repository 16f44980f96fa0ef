// Package tool defines the declarative tool and prompt catalog served over MCP.
package tool

import (
	"context"
	"fmt"
	"sort"
)

// Property describes one field of a tool's input shape.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// InputSchema is the declarative input-shape specification published in
// tools/list and enforced before every handler invocation.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ObjectSchema builds the standard object-typed schema. A nil property map
// becomes an empty one so the published schema serializes as an object.
func ObjectSchema(props map[string]Property, required ...string) InputSchema {
	if props == nil {
		props = map[string]Property{}
	}
	return InputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// Handler executes a tool invocation. The returned string is the text payload
// of the tool result; a non-nil error becomes an isError tool result, never a
// transport fault.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool is one callable action: a unique name, a description for the model,
// the input shape, and the handler.
type Tool struct {
	Name        string
	Description string
	Schema      InputSchema
	Handler     Handler
}

// Prompt is a canned conversation starter: a unique name and a zero-argument
// generator producing the fixed seed text.
type Prompt struct {
	Name        string
	Description string
	Text        func() string
}

// Catalog holds the tools and prompts registered at startup. It is immutable
// after construction; name uniqueness is enforced when it is built.
type Catalog struct {
	tools   map[string]*Tool
	prompts map[string]*Prompt

	toolOrder   []string
	promptOrder []string
}

// NewCatalog builds a catalog, rejecting duplicate names.
func NewCatalog(tools []Tool, prompts []Prompt) (*Catalog, error) {
	c := &Catalog{
		tools:   make(map[string]*Tool, len(tools)),
		prompts: make(map[string]*Prompt, len(prompts)),
	}

	for i := range tools {
		t := tools[i]
		if _, dup := c.tools[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name)
		}
		c.tools[t.Name] = &t
		c.toolOrder = append(c.toolOrder, t.Name)
	}
	for i := range prompts {
		p := prompts[i]
		if _, dup := c.prompts[p.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt name %q", p.Name)
		}
		c.prompts[p.Name] = &p
		c.promptOrder = append(c.promptOrder, p.Name)
	}

	sort.Strings(c.toolOrder)
	sort.Strings(c.promptOrder)
	return c, nil
}

// Tool resolves a tool by name.
func (c *Catalog) Tool(name string) (*Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Prompt resolves a prompt by name.
func (c *Catalog) Prompt(name string) (*Prompt, bool) {
	p, ok := c.prompts[name]
	return p, ok
}

// Tools returns all tools in name order.
func (c *Catalog) Tools() []*Tool {
	out := make([]*Tool, 0, len(c.toolOrder))
	for _, name := range c.toolOrder {
		out = append(out, c.tools[name])
	}
	return out
}

// Prompts returns all prompts in name order.
func (c *Catalog) Prompts() []*Prompt {
	out := make([]*Prompt, 0, len(c.promptOrder))
	for _, name := range c.promptOrder {
		out = append(out, c.prompts[name])
	}
	return out
}
