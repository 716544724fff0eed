// Package model holds the endpoint model: the read-only result of analysis
// that renderers consume.
package model

import (
	"sort"
	"strings"

	"github.com/mvp-joe/docmint/internal/diag"
)

// Method is an HTTP method. The set is closed.
type Method string

const (
	GET    Method = "GET"
	POST   Method = "POST"
	PUT    Method = "PUT"
	PATCH  Method = "PATCH"
	DELETE Method = "DELETE"
)

// Methods lists every HTTP method in display order.
var Methods = []Method{GET, POST, PUT, PATCH, DELETE}

// ParseMethod matches an HTTP method name case-insensitively.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// order returns the display position of a method.
func (m Method) order() int {
	for i, known := range Methods {
		if m == known {
			return i
		}
	}
	return len(Methods)
}

// Field is one field of a schema.
type Field struct {
	Name      string `json:"name"`
	Type      string `json:"type"`          // Constructor name or annotation as written
	Ref       string `json:"ref,omitempty"` // Qualified name of the nested schema
	Nested    bool   `json:"nested"`
	List      bool   `json:"list"`
	Required  bool   `json:"required"`
	ReadOnly  bool   `json:"read_only,omitempty"`
	WriteOnly bool   `json:"write_only,omitempty"`
	Nullable  bool   `json:"nullable,omitempty"`
	HelpText  string `json:"help_text,omitempty"`
}

// Schema is a data-transfer schema (serializer) with its fields resolved
// through inheritance.
type Schema struct {
	Name        string  `json:"name"`  // Qualified name
	Title       string  `json:"title"` // Simple class name
	Fields      []Field `json:"fields"`
	OwnFields   []Field `json:"-"`
	Base        string  `json:"base,omitempty"`
	Cyclic      bool    `json:"cyclic,omitempty"`
	Model       string  `json:"model,omitempty"`
	Description string  `json:"description,omitempty"`
	File        string  `json:"file"`
	Line        int     `json:"line"`
}

// Field returns the resolved field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// QueryParameter is one query-string key read by a handler.
type QueryParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, integer, number or boolean
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Source records which rule bound a schema to a method.
type Source string

const (
	SourceNone      Source = ""
	SourceDecorator Source = "decorator"
	SourceAttribute Source = "attribute"
	SourceBody      Source = "body"
	SourceService   Source = "service" // Body of a function the handler delegates to
	SourceClass     Source = "class"
	SourceGeneric   Source = "generic"
)

// MethodBinding is the resolved contract of one HTTP method on one endpoint.
type MethodBinding struct {
	Method          Method           `json:"method"`
	Function        string           `json:"function,omitempty"` // Handler function, empty for generic defaults
	Request         string           `json:"request,omitempty"`  // Empty means a raw body
	Response        string           `json:"response,omitempty"`
	RequestSource   Source           `json:"request_source,omitempty"`
	ResponseSource  Source           `json:"response_source,omitempty"`
	QueryParameters []QueryParameter `json:"query_parameters"`
	Status          int              `json:"status"`
	Summary         string           `json:"summary,omitempty"`
}

// EndpointKind distinguishes handler classes, handler functions and ViewSet
// actions.
type EndpointKind string

const (
	KindClass    EndpointKind = "class"
	KindFunction EndpointKind = "function"
	KindAction   EndpointKind = "action"
)

// Endpoint is one request handler.
type Endpoint struct {
	Name          string                    `json:"name"` // Qualified name
	Title         string                    `json:"title"`
	Kind          EndpointKind              `json:"kind"`
	Path          string                    `json:"path"`
	HeuristicPath bool                      `json:"heuristic_path,omitempty"`
	Base          string                    `json:"base,omitempty"`
	Description   string                    `json:"description,omitempty"`
	File          string                    `json:"file"`
	Line          int                       `json:"line"`
	Methods       map[Method]*MethodBinding `json:"methods"`
	Actions       []*Endpoint               `json:"actions,omitempty"`
}

// SortedMethods returns the endpoint's methods in display order.
func (e *Endpoint) SortedMethods() []Method {
	out := make([]Method, 0, len(e.Methods))
	for m := range e.Methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order() < out[j].order() })
	return out
}

// Bindings returns the endpoint's bindings in display order.
func (e *Endpoint) Bindings() []*MethodBinding {
	methods := e.SortedMethods()
	out := make([]*MethodBinding, len(methods))
	for i, m := range methods {
		out[i] = e.Methods[m]
	}
	return out
}

// Model is the complete analysis result.
type Model struct {
	Project   string            `json:"project"`
	Endpoints []*Endpoint       `json:"endpoints"`
	Schemas   []*Schema         `json:"schemas"`
	Warnings  []diag.Diagnostic `json:"warnings"`

	schemaIndex map[string]*Schema
}

// Schema returns the reachable schema with the given qualified name.
func (m *Model) Schema(name string) (*Schema, bool) {
	if m.schemaIndex != nil {
		s, ok := m.schemaIndex[name]
		return s, ok
	}
	for _, s := range m.Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Operations flattens endpoints and their actions in model order.
func (m *Model) Operations() []*Endpoint {
	var out []*Endpoint
	for _, e := range m.Endpoints {
		out = append(out, e)
		out = append(out, e.Actions...)
	}
	return out
}
