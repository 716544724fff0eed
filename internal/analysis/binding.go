package analysis

import (
	"strconv"
	"strings"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// Class-level attributes consulted for schema defaults, nearest class first.
var (
	requestDefaults  = []string{"request_serializer_class", "serializer_class"}
	responseDefaults = []string{"response_serializer_class", "serializer_class"}
	requestMaps      = []string{"request_serializer_classes", "serializer_classes"}
	responseMaps     = []string{"response_serializer_classes", "serializer_classes"}
)

// coercionTypes maps conversion calls to query parameter types.
var coercionTypes = map[string]string{
	"int":   "integer",
	"float": "number",
	"bool":  "boolean",
}

// BindingResolver fills in the request schema, response schema, query
// parameters and status of every exposed method.
type BindingResolver struct {
	table     *symbols.Table
	hierarchy *Hierarchy
	schemas   *SchemaResolver
	collector *diag.Collector
}

// NewBindingResolver creates a binding resolver.
func NewBindingResolver(table *symbols.Table, hierarchy *Hierarchy, schemas *SchemaResolver, collector *diag.Collector) *BindingResolver {
	return &BindingResolver{
		table:     table,
		hierarchy: hierarchy,
		schemas:   schemas,
		collector: collector,
	}
}

// Bind resolves the bindings of a handler and its actions.
func (b *BindingResolver) Bind(h *Handler) {
	for _, m := range model.Methods {
		if x, ok := h.exposures[m]; ok {
			h.Endpoint.Methods[m] = b.bind(h, m, x)
		}
	}
	for _, action := range h.Actions {
		b.Bind(action)
		h.Endpoint.Actions = append(h.Endpoint.Actions, action.Endpoint)
	}
}

// schemaChoice is a resolved schema plus the rule that produced it.
type schemaChoice struct {
	name   string
	source model.Source
	status int
}

func (b *BindingResolver) bind(h *Handler, m model.Method, x exposure) *model.MethodBinding {
	binding := &model.MethodBinding{
		Method:          m,
		QueryParameters: []model.QueryParameter{},
	}
	if x.Function != nil {
		binding.Function = x.Function.Name
		binding.Summary = firstLine(x.Function.Docstring)
	}

	keys := dictKeys(m, x.Action)

	req := b.requestSchema(h, m, x, keys)
	binding.Request, binding.RequestSource = req.name, req.source

	resp := b.responseSchema(h, m, x, keys)
	binding.Response, binding.ResponseSource = resp.name, resp.source

	binding.QueryParameters = b.queryParameters(h, m, x)
	binding.Status = b.status(m, x, resp)
	return binding
}

func (b *BindingResolver) requestSchema(h *Handler, m model.Method, x exposure, keys []string) schemaChoice {
	if fn := x.Function; fn != nil {
		if c, ok := b.decoratorSchema(fn, requestDecorator); ok {
			return c
		}
	}
	if h.Class != nil {
		maps := requestMaps
		if !hasBody(m) {
			// Shared maps describe request bodies only for methods that carry one
			maps = requestMaps[:1]
		}
		if c, ok := b.mapSchema(h.Class, maps, keys); ok {
			return c
		}
	}
	if fn := x.Function; fn != nil && fn.Body != nil {
		for _, callee := range fn.Body.DataCalls {
			if callee == symbols.GetSerializer {
				if c, ok := b.classDefault(h, x, requestDefaults); ok {
					return c
				}
				continue
			}
			if q, match := b.schemas.Ref(fn.Module, callee); match != symbols.MatchNone {
				b.noteHeuristic(fn, callee, q, match)
				return schemaChoice{name: q, source: model.SourceBody}
			}
		}
		for _, d := range b.delegated(fn) {
			for _, callee := range d.Body.DataCalls {
				if c, ok := b.serviceSchema(d, callee, 0); ok {
					return c
				}
			}
		}
	}
	if hasBody(m) {
		if c, ok := b.classDefault(h, x, requestDefaults); ok {
			return c
		}
	}
	return schemaChoice{}
}

func (b *BindingResolver) responseSchema(h *Handler, m model.Method, x exposure, keys []string) schemaChoice {
	if fn := x.Function; fn != nil {
		if c, ok := b.decoratorSchema(fn, responseDecorator); ok {
			return c
		}
	}
	if h.Class != nil {
		if c, ok := b.mapSchema(h.Class, responseMaps, keys); ok {
			return c
		}
	}
	if fn := x.Function; fn != nil && fn.Body != nil {
		for _, resp := range fn.Body.Responses {
			if resp.Schema == "" {
				continue
			}
			if resp.Schema == symbols.GetSerializer {
				if c, ok := b.classDefault(h, x, responseDefaults); ok {
					c.status = resp.Status
					return c
				}
				continue
			}
			if q, match := b.schemas.Ref(fn.Module, resp.Schema); match != symbols.MatchNone {
				b.noteHeuristic(fn, resp.Schema, q, match)
				return schemaChoice{name: q, source: model.SourceBody, status: resp.Status}
			}
		}
		for _, d := range b.delegated(fn) {
			for _, resp := range d.Body.Responses {
				if c, ok := b.serviceSchema(d, resp.Schema, resp.Status); ok {
					return c
				}
			}
			for _, callee := range d.Body.ReturnedData {
				if c, ok := b.serviceSchema(d, callee, 0); ok {
					return c
				}
			}
		}
	}
	if m != model.DELETE {
		if c, ok := b.classDefault(h, x, responseDefaults); ok {
			return c
		}
	}
	return schemaChoice{}
}

// decoratorReader extracts a schema expression from one decorator.
type decoratorReader func(dec symbols.DecoratorRef) (expr *symbols.Expr, status int, ok bool)

func requestDecorator(dec symbols.DecoratorRef) (*symbols.Expr, int, bool) {
	switch symbols.LastComponent(dec.Name) {
	case "extend_schema":
		e := dec.Keyword("request")
		return e, 0, e != nil
	case "swagger_auto_schema":
		e := dec.Keyword("request_body")
		return e, 0, e != nil
	case "action":
		e := dec.Keyword("serializer_class")
		return e, 0, e != nil
	}
	return nil, 0, false
}

func responseDecorator(dec symbols.DecoratorRef) (*symbols.Expr, int, bool) {
	switch symbols.LastComponent(dec.Name) {
	case "extend_schema", "swagger_auto_schema":
		e := dec.Keyword("responses")
		if e == nil {
			return nil, 0, false
		}
		if e.Kind == symbols.ExprDict {
			return successResponse(e)
		}
		return e, 0, true
	case "action":
		e := dec.Keyword("serializer_class")
		return e, 0, e != nil
	}
	return nil, 0, false
}

// successResponse picks the lowest 2xx entry of a responses dict.
func successResponse(dict *symbols.Expr) (*symbols.Expr, int, bool) {
	best := 0
	var value *symbols.Expr
	for _, p := range dict.Pairs {
		code, ok := p.Key.IntValue()
		if !ok {
			s, isStr := p.Key.StringValue()
			if !isStr {
				continue
			}
			n, err := strconv.Atoi(s)
			if err != nil {
				continue
			}
			code = n
		}
		if code < 200 || code > 299 {
			continue
		}
		if best == 0 || code < best {
			best, value = code, p.Value
		}
	}
	return value, best, value != nil
}

// decoratorSchema applies the first decorator that overrides the schema.
// An override ends the lookup even when its schema is None or does not
// resolve; the binding is then left empty. A bare None argument is the
// decorator default and overrides nothing.
func (b *BindingResolver) decoratorSchema(fn *symbols.Symbol, read decoratorReader) (schemaChoice, bool) {
	for _, dec := range fn.Decorators {
		e, status, ok := read(dec)
		if !ok || e == nil {
			continue
		}
		choice := schemaChoice{source: model.SourceDecorator, status: status}
		if e.Kind == symbols.ExprNone {
			if status == 0 {
				continue
			}
			return choice, true
		}
		name := schemaName(e)
		if name == "" {
			b.collector.Warn(diag.KindUnsupported, fn.File, dec.Line, fn.QualifiedName,
				"schema %s in @%s is not statically resolvable", e.Text, symbols.LastComponent(dec.Name))
			return choice, true
		}
		if q, ok := b.requireSchema(fn, name, dec.Line); ok {
			choice.name = q
		}
		return choice, true
	}
	return schemaChoice{}, false
}

// mapSchema looks a schema up in a {method-or-action: Schema} attribute.
func (b *BindingResolver) mapSchema(class *symbols.Symbol, attrs []string, keys []string) (schemaChoice, bool) {
	for _, name := range attrs {
		attr, owner, ok := b.hierarchy.FindAttribute(class, name)
		if !ok || attr.Value == nil || attr.Value.Kind != symbols.ExprDict {
			continue
		}
		for _, key := range keys {
			for _, p := range attr.Value.Pairs {
				k, ok := p.Key.StringValue()
				if !ok || !strings.EqualFold(k, key) {
					continue
				}
				// A matching entry ends the lookup, resolved or not
				choice := schemaChoice{source: model.SourceAttribute}
				if p.Value == nil || p.Value.Kind == symbols.ExprNone {
					return choice, true
				}
				ref := schemaName(p.Value)
				if ref == "" {
					b.collector.Warn(diag.KindUnsupported, owner.File, attr.Line, owner.QualifiedName,
						"schema %s in %s is not statically resolvable", p.Value.Text, name)
					return choice, true
				}
				if q, ok := b.requireSchema(owner, ref, attr.Line); ok {
					choice.name = q
				}
				return choice, true
			}
		}
	}
	return schemaChoice{}, false
}

// classDefault applies serializer class attributes, then the names returned
// by get_serializer_class.
func (b *BindingResolver) classDefault(h *Handler, x exposure, attrs []string) (schemaChoice, bool) {
	if h.Class == nil {
		return schemaChoice{}, false
	}
	source := model.SourceClass
	if x.Generic {
		source = model.SourceGeneric
	}

	for _, name := range attrs {
		attr, owner, ok := b.hierarchy.FindAttribute(h.Class, name)
		if !ok || attr.Value == nil || attr.Value.Kind == symbols.ExprNone {
			continue
		}
		ref := schemaName(attr.Value)
		if ref == "" {
			continue
		}
		if q, ok := b.requireSchema(owner, ref, attr.Line); ok {
			return schemaChoice{name: q, source: source}, true
		}
	}

	if fn, ok := b.hierarchy.FindMethod(h.Class, "get_serializer_class"); ok && fn.Body != nil {
		for _, ref := range fn.Body.Returns {
			if q, match := b.schemas.Ref(fn.Module, ref); match != symbols.MatchNone {
				b.noteHeuristic(fn, ref, q, match)
				return schemaChoice{name: q, source: source}, true
			}
		}
	}
	return schemaChoice{}, false
}

// queryParameters lists the distinct keys read by the handler function,
// followed for GET by those read in get_queryset.
func (b *BindingResolver) queryParameters(h *Handler, m model.Method, x exposure) []model.QueryParameter {
	var reads []symbols.QueryRead
	if x.Function != nil && x.Function.Body != nil {
		reads = append(reads, x.Function.Body.QueryReads...)
		for _, d := range b.delegated(x.Function) {
			if d.passesRequest {
				reads = append(reads, d.Body.QueryReads...)
			}
		}
	}
	if m == model.GET && h.Class != nil && h.Endpoint.Kind != model.KindAction {
		if qs, ok := b.hierarchy.FindMethod(h.Class, "get_queryset"); ok && qs.Body != nil {
			reads = append(reads, qs.Body.QueryReads...)
		}
	}

	params := []model.QueryParameter{}
	seen := make(map[string]bool)
	for _, read := range reads {
		if seen[read.Key] {
			continue
		}
		seen[read.Key] = true

		p := model.QueryParameter{
			Name:     read.Key,
			Type:     "string",
			Required: read.Subscript,
		}
		if t, ok := coercionTypes[read.Coercion]; ok {
			p.Type = t
		}
		if d := literalText(read.Default); d != "" {
			p.Description = "Defaults to " + d + "."
		}
		params = append(params, p)
	}
	return params
}

// status prefers an explicit code, then the method's conventional one.
func (b *BindingResolver) status(m model.Method, x exposure, resp schemaChoice) int {
	if resp.status >= 200 && resp.status < 300 {
		return resp.status
	}
	if x.Function != nil && x.Function.Body != nil {
		for _, r := range x.Function.Body.Responses {
			if r.Status >= 200 && r.Status < 300 {
				return r.Status
			}
		}
	}
	switch m {
	case model.POST:
		return 201
	case model.DELETE:
		return 204
	}
	return 200
}

// delegate is a project function called from a handler.
type delegate struct {
	*symbols.Symbol
	passesRequest bool
}

// delegated lists the project functions a handler calls, in call order and
// one level deep. Only exact resolutions count, so service methods are
// matched through the handler module's imports.
func (b *BindingResolver) delegated(fn *symbols.Symbol) []delegate {
	if fn == nil || fn.Body == nil {
		return nil
	}
	var out []delegate
	index := make(map[string]int)
	for _, call := range fn.Body.Calls {
		q, match := b.table.Resolve(fn.Module, call.Callee)
		if match != symbols.MatchExact || q == fn.QualifiedName {
			continue
		}
		if i, ok := index[q]; ok {
			out[i].passesRequest = out[i].passesRequest || call.PassesRequest
			continue
		}
		target, ok := b.table.Get(q)
		if !ok || target.Kind != symbols.KindFunction || target.Body == nil {
			continue
		}
		index[q] = len(out)
		out = append(out, delegate{Symbol: target, passesRequest: call.PassesRequest})
	}
	return out
}

// serviceSchema resolves a schema named inside a delegated function.
func (b *BindingResolver) serviceSchema(d delegate, ref string, status int) (schemaChoice, bool) {
	if ref == "" || ref == symbols.GetSerializer {
		return schemaChoice{}, false
	}
	q, match := b.schemas.Ref(d.Module, ref)
	if match == symbols.MatchNone {
		return schemaChoice{}, false
	}
	b.noteHeuristic(d.Symbol, ref, q, match)
	return schemaChoice{name: q, source: model.SourceService, status: status}, true
}

// requireSchema resolves a schema reference and records a warning naming
// the reference when it does not resolve.
func (b *BindingResolver) requireSchema(owner *symbols.Symbol, ref string, line int) (string, bool) {
	q, match := b.schemas.Ref(owner.Module, ref)
	if match == symbols.MatchNone {
		b.collector.Warn(diag.KindUnresolved, owner.File, line, owner.QualifiedName,
			"schema %s could not be resolved", ref)
		return "", false
	}
	b.noteHeuristic(owner, ref, q, match)
	return q, true
}

func (b *BindingResolver) noteHeuristic(owner *symbols.Symbol, ref, target string, match symbols.Match) {
	if match != symbols.MatchHeuristic {
		return
	}
	b.collector.Note(diag.KindHeuristic, owner.File, owner.Line, owner.QualifiedName,
		"%s matched %s by name only", ref, target)
}

// schemaName returns the dotted name behind X or X(many=True).
func schemaName(e *symbols.Expr) string {
	if e == nil {
		return ""
	}
	if e.Kind == symbols.ExprCall {
		return e.Callee()
	}
	return e.Dotted()
}

// dictKeys lists the keys tried in serializer_classes style dicts.
func dictKeys(m model.Method, action string) []string {
	keys := []string{}
	if action != "" {
		keys = append(keys, action)
	}
	return append(keys, strings.ToLower(string(m)))
}

func hasBody(m model.Method) bool {
	return m == model.POST || m == model.PUT || m == model.PATCH
}

// literalText renders a literal default for a description.
func literalText(e *symbols.Expr) string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case symbols.ExprString:
		return e.Value
	case symbols.ExprInt, symbols.ExprFloat, symbols.ExprBool, symbols.ExprNone:
		return e.Text
	}
	return ""
}

func firstLine(doc string) string {
	line, _, _ := strings.Cut(doc, "\n")
	return strings.TrimSpace(line)
}
