package model

import (
	"testing"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Assemble:
// - Endpoints are ordered by file, then line
// - Only schemas reachable from bindings, directly or through nested fields, are kept
// - Actions contribute their bindings to reachability
// - Unknown references, duplicate fields and mismatched bindings become invariant warnings
// - Two operations claiming the same method and path are reported once, naming the first
// - Warnings is never nil, and Schema lookups work with and without the index

func binding(m Method, req, resp string) *MethodBinding {
	return &MethodBinding{Method: m, Request: req, Response: resp, QueryParameters: []QueryParameter{}}
}

func TestAssemble_OrderAndClosure(t *testing.T) {
	t.Parallel()

	schemas := []*Schema{
		{Name: "app.s.Unused", Fields: []Field{{Name: "x"}}},
		{Name: "app.s.Tag", Fields: []Field{{Name: "label"}}},
		{Name: "app.s.ItemOut", Fields: []Field{
			{Name: "id"},
			{Name: "tags", Nested: true, List: true, Ref: "app.s.Tag"},
		}},
		{Name: "app.s.ItemIn", Fields: []Field{{Name: "name"}}},
		{Name: "app.s.Flag", Fields: []Field{{Name: "reason"}}},
	}
	endpoints := []*Endpoint{
		{
			Name: "app.views.B", File: "app/views.py", Line: 20,
			Methods: map[Method]*MethodBinding{POST: binding(POST, "app.s.ItemIn", "")},
		},
		{
			Name: "app.views.A", File: "app/views.py", Line: 5,
			Methods: map[Method]*MethodBinding{GET: binding(GET, "", "app.s.ItemOut")},
			Actions: []*Endpoint{{
				Name: "app.views.A.flag", Kind: KindAction, File: "app/views.py", Line: 9,
				Methods: map[Method]*MethodBinding{POST: binding(POST, "app.s.Flag", "")},
			}},
		},
		{
			Name: "accounts.views.Login", File: "accounts/views.py", Line: 40,
			Methods: map[Method]*MethodBinding{},
		},
	}

	collector := diag.NewCollector()
	m := Assemble("Shop", endpoints, schemas, collector)

	require.Len(t, m.Endpoints, 3)
	assert.Equal(t, "accounts.views.Login", m.Endpoints[0].Name)
	assert.Equal(t, "app.views.A", m.Endpoints[1].Name)
	assert.Equal(t, "app.views.B", m.Endpoints[2].Name)

	var names []string
	for _, s := range m.Schemas {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"app.s.Flag", "app.s.ItemIn", "app.s.ItemOut", "app.s.Tag"}, names)

	_, ok := m.Schema("app.s.Unused")
	assert.False(t, ok)
	tag, ok := m.Schema("app.s.Tag")
	require.True(t, ok)
	assert.Equal(t, "label", tag.Fields[0].Name)

	assert.Equal(t, "Shop", m.Project)
	assert.NotNil(t, m.Warnings)
	assert.Empty(t, m.Warnings)

	ops := m.Operations()
	require.Len(t, ops, 4)
	assert.Equal(t, "app.views.A.flag", ops[2].Name)
}

func TestAssemble_Invariants(t *testing.T) {
	t.Parallel()

	schemas := []*Schema{
		{Name: "app.s.Dup", File: "app/s.py", Line: 3, Fields: []Field{
			{Name: "a"},
			{Name: "a"},
			{Name: "child", Nested: true, Ref: "app.s.Gone"},
		}},
	}
	endpoints := []*Endpoint{{
		Name: "app.views.V", File: "app/views.py", Line: 1,
		Methods: map[Method]*MethodBinding{
			GET:  binding(GET, "", "app.s.Dup"),
			POST: binding(PUT, "app.s.Missing", ""),
		},
	}}

	collector := diag.NewCollector()
	m := Assemble("", endpoints, schemas, collector)

	var messages []string
	for _, w := range m.Warnings {
		assert.Equal(t, diag.KindInvariant, w.Kind)
		messages = append(messages, w.Message)
	}
	assert.ElementsMatch(t, []string{
		"duplicate field a",
		"reference to unknown schema app.s.Gone",
		"reference to unknown schema app.s.Missing",
		"binding for POST is registered under a different method",
	}, messages)
}

func TestAssemble_RouteClash(t *testing.T) {
	t.Parallel()

	endpoints := []*Endpoint{
		{
			Name: "app.views.Second", File: "app/views.py", Line: 30, Path: "/items/",
			Methods: map[Method]*MethodBinding{GET: binding(GET, "", ""), POST: binding(POST, "", "")},
		},
		{
			Name: "app.views.First", File: "app/views.py", Line: 10, Path: "/items/",
			Methods: map[Method]*MethodBinding{GET: binding(GET, "", "")},
		},
		{
			Name: "app.views.Other", File: "app/views.py", Line: 50, Path: "/other/",
			Methods: map[Method]*MethodBinding{GET: binding(GET, "", "")},
		},
	}

	m := Assemble("", endpoints, nil, diag.NewCollector())

	require.Len(t, m.Warnings, 1)
	w := m.Warnings[0]
	assert.Equal(t, diag.KindInvariant, w.Kind)
	assert.Equal(t, "app.views.Second", w.Symbol)
	assert.Equal(t, 30, w.Line)
	assert.Equal(t, "GET /items/ is also served by app.views.First; only the first appears in the OpenAPI document", w.Message)
}

func TestModel_SchemaWithoutIndex(t *testing.T) {
	t.Parallel()

	m := &Model{Schemas: []*Schema{{Name: "a.B"}}}
	s, ok := m.Schema("a.B")
	require.True(t, ok)
	assert.Equal(t, "a.B", s.Name)
	_, ok = m.Schema("a.C")
	assert.False(t, ok)
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	m, ok := ParseMethod(" patch ")
	require.True(t, ok)
	assert.Equal(t, PATCH, m)

	_, ok = ParseMethod("OPTIONS")
	assert.False(t, ok)
}

func TestJSONType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field  Field
		typ    string
		format string
	}{
		{Field{Type: "CharField"}, "string", ""},
		{Field{Type: "EmailField"}, "string", "email"},
		{Field{Type: "IntegerField"}, "integer", ""},
		{Field{Type: "FloatField"}, "number", "float"},
		{Field{Type: "DateTimeField"}, "string", "date-time"},
		{Field{Type: "models.BooleanField"}, "boolean", ""},
		{Field{Type: "Optional[List[int]]", List: true}, "integer", ""},
		{Field{Type: "datetime.datetime"}, "string", "date-time"},
		{Field{Type: "TagOut", Nested: true, Ref: "app.TagOut"}, "object", ""},
		{Field{Type: "SomethingCustom"}, "string", ""},
	}
	for _, tt := range tests {
		typ, format := JSONType(tt.field)
		assert.Equal(t, tt.typ, typ, tt.field.Type)
		assert.Equal(t, tt.format, format, tt.field.Type)
	}
}
