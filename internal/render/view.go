package render

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
)

// generalGroup collects endpoints whose path carries no /vN/ segment.
const generalGroup = "General"

var versionSegment = regexp.MustCompile(`/(v\d+(?:\.\d+)?)/`)

// docView is the data shared by the Markdown and HTML templates.
type docView struct {
	Project      string
	GeneratedAt  string
	MultiVersion bool
	Versions     []versionView
	Warnings     []diag.Diagnostic
	Endpoints    int
	Schemas      int
}

type versionView struct {
	Name      string
	Resources []resourceView
}

type resourceView struct {
	Name       string
	Operations []operationView
}

type operationView struct {
	Name        string
	Title       string
	Kind        string
	Path        string
	Anchor      string
	Heuristic   bool
	Description string
	Methods     []methodView

	endpoint *model.Endpoint
}

type methodView struct {
	Method   string
	Function string
	Summary  string
	Status   int
	Request  *schemaView
	Response *schemaView
	Query    []model.QueryParameter
}

type schemaView struct {
	Name    string
	Title   string
	Fields  []fieldView
	Example string
}

type fieldView struct {
	Name     string
	Type     string
	Props    []string
	Nested   string
	HelpText string
}

// group is one (version, resource) bucket of operations.
type group struct {
	version  string
	resource string
}

// groupOf derives the version and resource of a path: "/api/v1/items/" is
// (v1, Items); a path without a version segment belongs to General.
func groupOf(path string) group {
	version := generalGroup
	rest := path
	if loc := versionSegment.FindStringSubmatchIndex(path); loc != nil {
		version = path[loc[2]:loc[3]]
		rest = path[loc[1]:]
	}

	resource := "Other"
	for _, part := range strings.Split(rest, "/") {
		if part != "" && !strings.HasPrefix(part, "{") {
			resource = strings.ToUpper(part[:1]) + part[1:]
			break
		}
	}
	return group{version: version, resource: resource}
}

// sortVersions orders versions by name with General last.
func sortVersions(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		if (versions[i] == generalGroup) != (versions[j] == generalGroup) {
			return versions[j] == generalGroup
		}
		return versions[i] < versions[j]
	})
}

// buildView groups operations by version and resource, each bucket sorted
// by path.
func buildView(m *model.Model, opts Options) *docView {
	buckets := make(map[string]map[string][]*model.Endpoint)
	for _, op := range m.Operations() {
		g := groupOf(op.Path)
		if buckets[g.version] == nil {
			buckets[g.version] = make(map[string][]*model.Endpoint)
		}
		buckets[g.version][g.resource] = append(buckets[g.version][g.resource], op)
	}

	versions := make([]string, 0, len(buckets))
	for v := range buckets {
		versions = append(versions, v)
	}
	sortVersions(versions)

	view := &docView{
		Project:      projectTitle(m),
		GeneratedAt:  opts.GeneratedAt.Format("2006-01-02 15:04"),
		MultiVersion: len(versions) > 1,
		Warnings:     m.Warnings,
		Endpoints:    len(m.Operations()),
		Schemas:      len(m.Schemas),
	}
	for _, v := range versions {
		vv := versionView{Name: v}
		resources := make([]string, 0, len(buckets[v]))
		for r := range buckets[v] {
			resources = append(resources, r)
		}
		sort.Strings(resources)

		for _, r := range resources {
			ops := buckets[v][r]
			sort.SliceStable(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })
			rv := resourceView{Name: r}
			for _, op := range ops {
				rv.Operations = append(rv.Operations, operationOf(m, op))
			}
			vv.Resources = append(vv.Resources, rv)
		}
		view.Versions = append(view.Versions, vv)
	}
	return view
}

func projectTitle(m *model.Model) string {
	if m.Project != "" {
		return m.Project
	}
	return "API"
}

func operationOf(m *model.Model, e *model.Endpoint) operationView {
	op := operationView{
		Name:        e.Name,
		Title:       e.Title,
		Kind:        string(e.Kind),
		Path:        e.Path,
		Anchor:      anchor(e.Name),
		Heuristic:   e.HeuristicPath,
		Description: e.Description,
		endpoint:    e,
	}
	for _, b := range e.Bindings() {
		op.Methods = append(op.Methods, methodView{
			Method:   string(b.Method),
			Function: b.Function,
			Summary:  b.Summary,
			Status:   b.Status,
			Request:  schemaOf(m, b.Request),
			Response: schemaOf(m, b.Response),
			Query:    b.QueryParameters,
		})
	}
	return op
}

func schemaOf(m *model.Model, name string) *schemaView {
	if name == "" {
		return nil
	}
	s, ok := m.Schema(name)
	if !ok {
		return &schemaView{Name: name, Title: name}
	}

	sv := &schemaView{Name: s.Name, Title: s.Title}
	for _, f := range s.Fields {
		fv := fieldView{Name: f.Name, Type: displayType(f), HelpText: f.HelpText}
		if f.Required {
			fv.Props = append(fv.Props, "Required")
		}
		if f.ReadOnly {
			fv.Props = append(fv.Props, "ReadOnly")
		}
		if f.WriteOnly {
			fv.Props = append(fv.Props, "WriteOnly")
		}
		if f.Nullable {
			fv.Props = append(fv.Props, "Nullable")
		}
		if f.Nested {
			if nested, ok := m.Schema(f.Ref); ok {
				fv.Nested = nested.Title
			}
		}
		sv.Fields = append(sv.Fields, fv)
	}

	data, err := json.MarshalIndent(exampleOf(m, s, map[string]bool{}), "", "  ")
	if err == nil {
		sv.Example = string(data)
	}
	return sv
}

func displayType(f model.Field) string {
	t := f.Type
	if f.Nested {
		if i := strings.LastIndex(f.Ref, "."); i >= 0 {
			t = f.Ref[i+1:]
		}
	}
	if f.List && !strings.Contains(t, "[") {
		return "List[" + t + "]"
	}
	return t
}

// anchor turns a qualified name into an HTML id.
func anchor(name string) string {
	return "endpoint-" + strings.ReplaceAll(strings.ToLower(name), ".", "-")
}

// exampleOf builds a mock JSON object for a schema. Schemas already on the
// current path render as a placeholder so recursive schemas terminate.
func exampleOf(m *model.Model, s *model.Schema, visiting map[string]bool) map[string]any {
	if visiting[s.Name] {
		return map[string]any{"...recursive...": true}
	}
	visiting[s.Name] = true
	defer delete(visiting, s.Name)

	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		var v any
		if nested, ok := m.Schema(f.Ref); ok && f.Nested {
			v = exampleOf(m, nested, visiting)
		} else {
			v = mockValue(f)
		}
		if f.List {
			v = []any{v}
		}
		out[f.Name] = v
	}
	return out
}

func mockValue(f model.Field) any {
	typ, format := model.JSONType(f)
	switch typ {
	case "integer":
		return 0
	case "number":
		return 0.0
	case "boolean":
		return true
	case "object":
		return map[string]any{"key": "value"}
	}
	switch format {
	case "uuid":
		return "3fa85f64-5717-4562-b3fc-2c963f66afa6"
	case "date-time":
		return "2024-02-15T12:00:00Z"
	case "date":
		return "2024-02-15"
	case "email":
		return "user@example.com"
	case "uri":
		return "https://example.com"
	case "decimal":
		return "0.00"
	}
	return "string"
}
