package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mvp-joe/docmint/internal/model"
	"gopkg.in/yaml.v3"
)

var pathParam = regexp.MustCompile(`\{(\w+)\}`)

// standardFormats are the formats emitted into the document; others are
// dropped so strict validators accept the output.
var standardFormats = map[string]bool{
	"date": true, "date-time": true, "time": true, "duration": true,
	"email": true, "uri": true, "uuid": true, "binary": true,
	"ipv4": true, "ipv6": true, "float": true, "double": true,
	"int32": true, "int64": true,
}

type openAPIRenderer struct {
	opts Options
}

func (r *openAPIRenderer) Format() Format { return FormatOpenAPI }

func (r *openAPIRenderer) FileName() string {
	if r.opts.OpenAPIYAML {
		return OpenAPIYAMLFile
	}
	return OpenAPIJSONFile
}

func (r *openAPIRenderer) Render(w io.Writer, m *model.Model) error {
	doc := BuildOpenAPI(m, r.opts)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal openapi document: %w", err)
	}
	if r.opts.OpenAPIYAML {
		if data, err = jsonToYAML(data); err != nil {
			return err
		}
	} else {
		data = append(data, '\n')
	}
	_, err = w.Write(data)
	return err
}

// BuildOpenAPI converts the model into an OpenAPI 3 document. Schemas become
// components referenced from request bodies, responses and nested fields.
func BuildOpenAPI(m *model.Model, opts Options) *openapi3.T {
	opts = opts.withDefaults()
	names := componentNames(m.Schemas)

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   projectTitle(m) + " API",
			Version: opts.Version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas, len(m.Schemas)),
		},
	}

	for _, s := range m.Schemas {
		doc.Components.Schemas[names[s.Name]] = openapi3.NewSchemaRef("", componentSchema(s, names))
	}

	seenIDs := make(map[string]bool)
	for _, e := range m.Operations() {
		if len(e.Methods) == 0 {
			continue
		}
		item := doc.Paths.Value(e.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(e.Path, item)
		}
		for _, b := range e.Bindings() {
			if item.GetOperation(string(b.Method)) != nil {
				slog.Debug("skipping duplicate operation", "path", e.Path, "method", b.Method, "endpoint", e.Name)
				continue
			}
			op := operation(e, b, names)
			op.OperationID = uniqueID(operationID(e, b), seenIDs)
			item.SetOperation(string(b.Method), op)
		}
	}
	return doc
}

func operation(e *model.Endpoint, b *model.MethodBinding, names map[string]string) *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:        []string{groupOf(e.Path).resource},
		Summary:     b.Summary,
		Description: e.Description,
	}
	if op.Summary == "" {
		op.Summary = e.Title
	}

	for _, match := range pathParam.FindAllStringSubmatch(e.Path, -1) {
		p := openapi3.NewPathParameter(match[1]).WithSchema(openapi3.NewStringSchema())
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: p})
	}
	for _, q := range b.QueryParameters {
		p := openapi3.NewQueryParameter(q.Name).
			WithSchema(scalarSchema(q.Type, "")).
			WithRequired(q.Required).
			WithDescription(q.Description)
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: p})
	}

	if b.Request != "" {
		body := openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchemaRef(componentRef(b.Request, names))
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}

	resp := openapi3.NewResponse().WithDescription(statusText(b.Status))
	if b.Response != "" {
		resp = resp.WithJSONSchemaRef(componentRef(b.Response, names))
	}
	op.Responses = openapi3.NewResponses(openapi3.WithStatus(b.Status, &openapi3.ResponseRef{Value: resp}))
	return op
}

// componentNames maps qualified schema names to component keys: the simple
// class name, or the qualified name when two schemas share a simple name.
func componentNames(schemas []*model.Schema) map[string]string {
	count := make(map[string]int, len(schemas))
	for _, s := range schemas {
		count[s.Title]++
	}
	names := make(map[string]string, len(schemas))
	for _, s := range schemas {
		if s.Title != "" && count[s.Title] == 1 {
			names[s.Name] = s.Title
		} else {
			names[s.Name] = s.Name
		}
	}
	return names
}

func componentRef(name string, names map[string]string) *openapi3.SchemaRef {
	key, ok := names[name]
	if !ok {
		// Unknown schemas were already reported during assembly
		return openapi3.NewSchemaRef("", openapi3.NewObjectSchema())
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+key, nil)
}

func componentSchema(s *model.Schema, names map[string]string) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Title = s.Title
	schema.Description = s.Description
	for _, f := range s.Fields {
		var prop *openapi3.SchemaRef
		if f.Nested && f.Ref != "" {
			prop = componentRef(f.Ref, names)
		} else {
			typ, format := model.JSONType(f)
			prop = openapi3.NewSchemaRef("", scalarSchema(typ, format))
		}
		if f.List {
			arr := openapi3.NewArraySchema()
			arr.Items = prop
			prop = openapi3.NewSchemaRef("", arr)
		}
		if prop.Value != nil {
			prop.Value.ReadOnly = f.ReadOnly
			prop.Value.WriteOnly = f.WriteOnly
			prop.Value.Nullable = f.Nullable
			prop.Value.Description = f.HelpText
		}
		schema.Properties[f.Name] = prop
		if f.Required {
			schema.Required = append(schema.Required, f.Name)
		}
	}
	return schema
}

func scalarSchema(typ, format string) *openapi3.Schema {
	var s *openapi3.Schema
	switch typ {
	case "integer":
		s = openapi3.NewIntegerSchema()
	case "number":
		s = openapi3.NewFloat64Schema()
	case "boolean":
		s = openapi3.NewBoolSchema()
	case "object":
		return openapi3.NewObjectSchema()
	default:
		s = openapi3.NewStringSchema()
	}
	if standardFormats[format] {
		s.Format = format
	}
	return s
}

// operationID builds an id such as "shop_views_ItemView_get".
func operationID(e *model.Endpoint, b *model.MethodBinding) string {
	return strings.ReplaceAll(e.Name, ".", "_") + "_" + strings.ToLower(string(b.Method))
}

func uniqueID(id string, seen map[string]bool) string {
	candidate := id
	for i := 2; seen[candidate]; i++ {
		candidate = id + "_" + strconv.Itoa(i)
	}
	seen[candidate] = true
	return candidate
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 202:
		return "Accepted"
	case 204:
		return "No Content"
	}
	return "Successful response"
}

// jsonToYAML re-encodes a JSON document as block-style YAML, keeping key
// order.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse openapi json: %w", err)
	}
	clearStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to encode openapi yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode openapi yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
