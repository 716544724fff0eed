package analysis

import (
	"sort"
	"strings"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// urlEntry is one item of a module's urlpatterns.
type urlEntry struct {
	route   string
	view    string // Dotted view reference with .as_view stripped
	include string // Included module path
	router  string // Router variable whose URLs are included
	line    int
}

// registration is one router.register("prefix", ViewSet) call.
type registration struct {
	prefix string
	view   string
	line   int
}

// urlModule is the URL configuration declared by one module.
type urlModule struct {
	module  *symbols.Module
	entries []urlEntry
	routers map[string][]registration
}

// URLConf maps handler qualified names to the routes declared for them in
// urlpatterns and router registrations.
type URLConf struct {
	table     *symbols.Table
	collector *diag.Collector

	modules  map[string]*urlModule
	routes   map[string]string
	visited  map[string]bool
	included map[string]bool // Routers reached through urlpatterns
}

// NewURLConf reads every module's URL configuration. Modules included by
// another module are walked from their includer so they inherit its prefix.
func NewURLConf(table *symbols.Table, collector *diag.Collector) *URLConf {
	u := &URLConf{
		table:     table,
		collector: collector,
		modules:   make(map[string]*urlModule),
		routes:    make(map[string]string),
		visited:   make(map[string]bool),
		included:  make(map[string]bool),
	}

	for _, m := range table.Modules() {
		if um := u.readModule(m); um != nil {
			u.modules[m.Path] = um
		}
	}

	includedModules := make(map[string]bool)
	for _, um := range u.modules {
		for _, e := range um.entries {
			if e.include != "" {
				includedModules[e.include] = true
			}
		}
	}

	paths := make([]string, 0, len(u.modules))
	for p := range u.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if !includedModules[p] {
			u.walk(p, "")
		}
	}
	// Include cycles leave modules unreached
	for _, p := range paths {
		u.walk(p, "")
	}
	// Routers that are registered but never included
	for _, p := range paths {
		um := u.modules[p]
		for _, name := range sortedKeys(um.routers) {
			if !u.included[p+"."+name] {
				u.mountRouter(um, name, "")
			}
		}
	}
	return u
}

// Route returns the declared route of a handler.
func (u *URLConf) Route(qualifiedName string) (string, bool) {
	r, ok := u.routes[qualifiedName]
	return r, ok
}

// Len returns the number of routed handlers.
func (u *URLConf) Len() int {
	return len(u.routes)
}

func (u *URLConf) readModule(m *symbols.Module) *urlModule {
	um := &urlModule{module: m, routers: make(map[string][]registration)}

	routerVars := make(map[string]bool)
	for _, a := range m.Assignments {
		if strings.HasSuffix(symbols.LastComponent(a.Value.Callee()), "Router") {
			routerVars[a.Target] = true
		}
	}

	for _, call := range m.Calls {
		obj, method, ok := strings.Cut(call.Callee(), ".")
		if !ok || method != "register" || !routerVars[obj] {
			continue
		}
		prefix, _ := call.Arg(0).StringValue()
		view := call.Arg(1).Dotted()
		if view == "" {
			continue
		}
		um.routers[obj] = append(um.routers[obj], registration{prefix: prefix, view: view, line: call.Line})
	}

	for _, a := range m.Assignments {
		if a.Target != "urlpatterns" {
			continue
		}
		if router, ok := routerURLs(a.Value, routerVars); ok {
			um.entries = append(um.entries, urlEntry{router: router, line: a.Line})
			continue
		}
		if a.Value.Kind != symbols.ExprList {
			continue
		}
		for _, item := range a.Value.Args {
			if e, ok := u.readEntry(m, item, routerVars); ok {
				e.line = item.Line
				um.entries = append(um.entries, e)
			}
		}
	}

	if len(um.entries) == 0 && len(um.routers) == 0 {
		return nil
	}
	return um
}

// readEntry reads path("route", view) and re_path(r"^route$", view).
func (u *URLConf) readEntry(m *symbols.Module, item *symbols.Expr, routerVars map[string]bool) (urlEntry, bool) {
	switch symbols.LastComponent(item.Callee()) {
	case "path", "re_path", "url":
	default:
		return urlEntry{}, false
	}
	route, ok := item.Arg(0).StringValue()
	if !ok {
		route, ok = item.Keyword("route").StringValue()
	}
	if !ok {
		return urlEntry{}, false
	}
	target := item.Arg(1)
	if target == nil {
		target = item.Keyword("view")
	}
	if target == nil {
		return urlEntry{}, false
	}

	e := urlEntry{route: route}
	if symbols.LastComponent(target.Callee()) == "include" {
		arg := target.Arg(0)
		if arg != nil && arg.Kind == symbols.ExprList {
			// include((patterns, app_name))
			arg = arg.Arg(0)
		}
		if router, ok := routerURLs(arg, routerVars); ok {
			e.router = router
			return e, true
		}
		if mod, ok := arg.StringValue(); ok {
			e.include = mod
			return e, true
		}
		if dotted := arg.Dotted(); dotted != "" {
			e.include = u.modulePath(m, dotted)
			return e, e.include != ""
		}
		return urlEntry{}, false
	}

	view := target.Callee()
	if view != "" {
		view = strings.TrimSuffix(view, ".as_view")
	} else {
		view = target.Dotted()
	}
	if view == "" || strings.HasSuffix(view, ".urls") {
		return urlEntry{}, false
	}
	e.view = view
	return e, true
}

// modulePath resolves an imported module reference such as "shop.urls".
func (u *URLConf) modulePath(m *symbols.Module, dotted string) string {
	first, rest, _ := strings.Cut(dotted, ".")
	if imp, ok := m.Imports[first]; ok {
		dotted = joinModule(imp.Target, rest)
	}
	if _, ok := u.table.Module(dotted); ok {
		return dotted
	}
	return ""
}

func (u *URLConf) walk(path, prefix string) {
	if u.visited[path] {
		return
	}
	u.visited[path] = true

	um, ok := u.modules[path]
	if !ok {
		return
	}
	for _, e := range um.entries {
		route := joinPath(prefix, e.route)
		switch {
		case e.include != "":
			u.walk(e.include, route)
		case e.router != "":
			u.mountRouter(um, e.router, route)
		default:
			u.bind(um.module, e.view, route, e.line)
		}
	}
}

func (u *URLConf) mountRouter(um *urlModule, name, prefix string) {
	u.included[um.module.Path+"."+name] = true
	for _, r := range um.routers[name] {
		u.bind(um.module, r.view, joinPath(prefix, r.prefix+"/"), r.line)
	}
}

func (u *URLConf) bind(m *symbols.Module, view, route string, line int) {
	q, match := u.table.Resolve(m.Path, view)
	if match == symbols.MatchNone {
		first, _, _ := strings.Cut(view, ".")
		if _, imported := m.Imports[first]; !imported {
			u.collector.Warn(diag.KindUnresolved, m.File, line, "",
				"view %s in URL configuration could not be resolved", view)
		}
		return
	}
	if match == symbols.MatchHeuristic {
		u.collector.Note(diag.KindHeuristic, m.File, line, q,
			"view %s matched %s by name only", view, q)
	}
	if _, exists := u.routes[q]; !exists {
		u.routes[q] = strings.ReplaceAll(route, "//", "/")
	}
}

// routerURLs matches "router.urls".
func routerURLs(e *symbols.Expr, routerVars map[string]bool) (string, bool) {
	obj, attr, ok := strings.Cut(e.Dotted(), ".")
	if !ok || attr != "urls" || !routerVars[obj] {
		return "", false
	}
	return obj, true
}

func joinModule(a, b string) string {
	if b == "" {
		return a
	}
	return a + "." + b
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
