package analysis

import (
	"sort"
	"strings"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// routeAttributes name a handler's route when no URL configuration does.
var routeAttributes = []string{"route_path", "url_path"}

// exposure records how a handler exposes one HTTP method.
type exposure struct {
	Function *symbols.Symbol // nil for generic defaults
	Action   string          // ViewSet or @action name, empty for HTTP-named functions
	Generic  bool
}

// Handler is an endpoint under construction together with the symbols the
// binding stage needs.
type Handler struct {
	Endpoint *model.Endpoint
	Class    *symbols.Symbol // nil for function handlers
	Function *symbols.Symbol // Function handlers and actions
	Actions  []*Handler

	exposures map[model.Method]exposure
}

// Method returns how the handler exposes an HTTP method.
func (h *Handler) Method(m model.Method) (fn *symbols.Symbol, action string, ok bool) {
	x, ok := h.exposures[m]
	return x.Function, x.Action, ok
}

// EndpointResolver finds handler classes and functions and determines the
// methods, actions and route of each.
type EndpointResolver struct {
	table      *symbols.Table
	hierarchy  *Hierarchy
	classifier *Classifier
	urls       *URLConf
	policy     RoutePolicy
	collector  *diag.Collector
}

// NewEndpointResolver creates an endpoint resolver.
func NewEndpointResolver(table *symbols.Table, hierarchy *Hierarchy, classifier *Classifier, urls *URLConf, policy RoutePolicy, collector *diag.Collector) *EndpointResolver {
	return &EndpointResolver{
		table:      table,
		hierarchy:  hierarchy,
		classifier: classifier,
		urls:       urls,
		policy:     policy,
		collector:  collector,
	}
}

// Resolve returns every handler ordered by file, then line.
func (r *EndpointResolver) Resolve() []*Handler {
	var handlers []*Handler
	for _, sym := range r.table.Symbols() {
		switch {
		case sym.Kind == symbols.KindClass && r.classifier.IsHandler(sym):
			handlers = append(handlers, r.classHandler(sym))
		case sym.Kind == symbols.KindFunction && sym.Parent == "":
			if dec, ok := sym.Decorator("api_view"); ok {
				handlers = append(handlers, r.functionHandler(sym, dec))
			}
		}
	}
	SortHandlers(handlers)
	return handlers
}

// SortHandlers orders handlers by file, then line.
func SortHandlers(handlers []*Handler) {
	sort.SliceStable(handlers, func(i, j int) bool {
		a, b := handlers[i].Endpoint, handlers[j].Endpoint
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}

func (r *EndpointResolver) classHandler(class *symbols.Symbol) *Handler {
	r.hierarchy.warnUnknownBases(class)

	e := &model.Endpoint{
		Name:        class.QualifiedName,
		Title:       class.Name,
		Kind:        model.KindClass,
		Description: class.Docstring,
		File:        class.File,
		Line:        class.Line,
		Methods:     make(map[model.Method]*model.MethodBinding),
	}
	for _, base := range r.hierarchy.DirectBases(class) {
		if base.Symbol != nil && r.classifier.IsHandler(base.Symbol) {
			e.Base = base.Symbol.QualifiedName
			break
		}
	}
	e.Path, e.HeuristicPath = r.classRoute(class)

	h := &Handler{Endpoint: e, Class: class, exposures: r.classMethods(class)}
	h.Actions = r.actions(h)
	return h
}

// classMethods applies, per HTTP method: an HTTP-named function, then a
// ViewSet standard action, then a generic default from a registered base.
func (r *EndpointResolver) classMethods(class *symbols.Symbol) map[model.Method]exposure {
	exposed := make(map[model.Method]exposure)

	lineage := r.hierarchy.Lineage(class)
	for _, m := range model.Methods {
		if fn := r.findHTTPFunction(lineage, m); fn != nil {
			exposed[m] = exposure{Function: fn}
		}
	}

	if r.isViewSet(class) {
		for _, a := range viewSetActions {
			if _, done := exposed[a.Method]; done {
				continue
			}
			if fn, ok := r.hierarchy.FindMethod(class, a.Name); ok && !isAction(fn) {
				exposed[a.Method] = exposure{Function: fn, Action: a.Name}
			}
		}
	}

	for _, a := range r.hierarchy.Ancestors(class) {
		for _, m := range genericDefaults[a.SimpleName()] {
			if _, done := exposed[m]; !done {
				exposed[m] = exposure{Generic: true, Action: genericAction(a.SimpleName(), m)}
			}
		}
	}
	return exposed
}

// findHTTPFunction finds the nearest function named after the method.
func (r *EndpointResolver) findHTTPFunction(lineage []*symbols.Symbol, m model.Method) *symbols.Symbol {
	for _, s := range lineage {
		for _, fn := range r.table.Methods(s) {
			if got, ok := httpMethodName(fn.Name); ok && got == m {
				return fn
			}
		}
	}
	return nil
}

func (r *EndpointResolver) isViewSet(class *symbols.Symbol) bool {
	if strings.Contains(class.Name, "ViewSet") {
		return true
	}
	for _, a := range r.hierarchy.Ancestors(class) {
		if strings.Contains(a.SimpleName(), "ViewSet") {
			return true
		}
	}
	return false
}

// classRoute applies URL configuration, then a route attribute, then the
// route policy.
func (r *EndpointResolver) classRoute(class *symbols.Symbol) (string, bool) {
	if route, ok := r.urls.Route(class.QualifiedName); ok {
		return route, false
	}
	for _, name := range routeAttributes {
		if attr, _, ok := r.hierarchy.FindAttribute(class, name); ok {
			if v, ok := attr.Value.StringValue(); ok {
				return normalizePath(v), false
			}
		}
	}
	return r.heuristicRoute(class, class.Name), true
}

func (r *EndpointResolver) heuristicRoute(sym *symbols.Symbol, name string) string {
	route := r.policy.Route(name)
	r.collector.Note(diag.KindHeuristic, sym.File, sym.Line, sym.QualifiedName,
		"no route declared, using %s (%s policy)", route, r.policy.Name())
	return route
}

// actions turns @action functions along the lineage into child endpoints.
// A subclass function hides an inherited one of the same name.
func (r *EndpointResolver) actions(parent *Handler) []*Handler {
	var out []*Handler
	seen := make(map[string]bool)

	for _, s := range r.hierarchy.Lineage(parent.Class) {
		for _, fn := range r.table.Methods(s) {
			if seen[fn.Name] {
				continue
			}
			seen[fn.Name] = true
			dec, ok := fn.Decorator("action")
			if !ok {
				continue
			}
			out = append(out, r.action(parent, fn, dec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Function.Line < out[j].Function.Line })
	return out
}

func (r *EndpointResolver) action(parent *Handler, fn *symbols.Symbol, dec symbols.DecoratorRef) *Handler {
	if !dec.Resolved {
		r.collector.Warn(diag.KindUnsupported, fn.File, dec.Line, fn.QualifiedName,
			"@action arguments are not statically resolvable")
	}

	segment := strings.ReplaceAll(fn.Name, "_", "-")
	if v, ok := dec.Keyword("url_path").StringValue(); ok {
		segment = v
	}
	if dec.Keyword("detail").IsTrue() {
		segment = "{pk}/" + segment
	}

	e := &model.Endpoint{
		Name:        parent.Endpoint.Name + "." + fn.Name,
		Title:       fn.Name,
		Kind:        model.KindAction,
		Path:        joinPath(parent.Endpoint.Path, segment+"/"),
		Description: fn.Docstring,
		File:        fn.File,
		Line:        fn.Line,
		Methods:     make(map[model.Method]*model.MethodBinding),
	}
	e.HeuristicPath = parent.Endpoint.HeuristicPath

	exposed := make(map[model.Method]exposure)
	for _, m := range r.decoratorMethods(fn, dec, dec.Keyword("methods")) {
		exposed[m] = exposure{Function: fn, Action: fn.Name}
	}
	return &Handler{Endpoint: e, Class: parent.Class, Function: fn, exposures: exposed}
}

func (r *EndpointResolver) functionHandler(fn *symbols.Symbol, dec symbols.DecoratorRef) *Handler {
	e := &model.Endpoint{
		Name:        fn.QualifiedName,
		Title:       fn.Name,
		Kind:        model.KindFunction,
		Description: fn.Docstring,
		File:        fn.File,
		Line:        fn.Line,
		Methods:     make(map[model.Method]*model.MethodBinding),
	}
	if route, ok := r.urls.Route(fn.QualifiedName); ok {
		e.Path = route
	} else {
		e.Path = r.heuristicRoute(fn, fn.Name)
		e.HeuristicPath = true
	}

	list := dec.Arg(0)
	if list == nil {
		list = dec.Keyword("http_method_names")
	}
	exposed := make(map[model.Method]exposure)
	for _, m := range r.decoratorMethods(fn, dec, list) {
		exposed[m] = exposure{Function: fn}
	}
	return &Handler{Endpoint: e, Function: fn, exposures: exposed}
}

// decoratorMethods reads a literal method list, defaulting to GET.
func (r *EndpointResolver) decoratorMethods(fn *symbols.Symbol, dec symbols.DecoratorRef, list *symbols.Expr) []model.Method {
	if list == nil {
		return []model.Method{model.GET}
	}
	names, ok := list.Strings()
	if !ok {
		r.collector.Warn(diag.KindUnsupported, fn.File, dec.Line, fn.QualifiedName,
			"method list %s is not a literal, assuming GET", list.Text)
		return []model.Method{model.GET}
	}

	var methods []model.Method
	for _, name := range names {
		m, ok := model.ParseMethod(name)
		if !ok {
			r.collector.Warn(diag.KindUnsupported, fn.File, dec.Line, fn.QualifiedName,
				"unsupported HTTP method %q", name)
			continue
		}
		methods = append(methods, m)
	}
	if len(methods) == 0 {
		return []model.Method{model.GET}
	}
	return methods
}

func isAction(fn *symbols.Symbol) bool {
	_, ok := fn.Decorator("action")
	return ok
}

// genericAction names the mixin action behind a generic default.
func genericAction(base string, m model.Method) string {
	switch m {
	case model.POST:
		return "create"
	case model.PUT:
		return "update"
	case model.PATCH:
		return "partial_update"
	case model.DELETE:
		return "destroy"
	}
	if strings.HasPrefix(base, "Retrieve") && !strings.Contains(base, "List") {
		return "retrieve"
	}
	return "list"
}
