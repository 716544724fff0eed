// Package symbols indexes every class and function definition of a project
// by qualified name. The table is built once from parsed source units and is
// read-only afterwards; later stages never look at syntax trees again.
package symbols

import "strings"

// Kind distinguishes class symbols from function symbols.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
)

// Symbol is one class or function definition.
type Symbol struct {
	QualifiedName string // Module path plus nested name, e.g. "shop.views.ItemView.get"
	Name          string // Simple name
	Module        string
	Kind          Kind
	File          string // Relative file path
	Line          int    // 1-indexed
	Parent        string // Enclosing class for methods and nested classes

	Bases      []BaseRef
	Decorators []DecoratorRef
	Methods    []string // Qualified names, declaration order
	Attributes []Attribute
	Meta       []Attribute // Attributes of the inner Meta class
	Docstring  string

	// Functions only
	Params []string
	Body   *FunctionBody
}

// BaseRef is a base class reference as written in the class header.
// It is resolved lazily by name and may point outside the project.
type BaseRef struct {
	Name string // Dotted name, or source text when not a plain name
	Line int
	Expr *Expr
}

// Attribute is a class-level assignment or annotation.
type Attribute struct {
	Name       string
	Annotation *Expr // nil when not annotated
	Value      *Expr // nil for annotation-only declarations
	Line       int
}

// DecoratorRef is a decorator applied to a class or function.
type DecoratorRef struct {
	Name     string // Dotted callee
	Called   bool
	Args     []*Expr
	Keywords []Keyword
	Resolved bool // False when an argument is not a literal or name reference
	Line     int
}

// Keyword returns the value of a keyword argument, or nil.
func (d DecoratorRef) Keyword(name string) *Expr {
	return findKeyword(d.Keywords, name)
}

// Arg returns the i-th positional argument, or nil.
func (d DecoratorRef) Arg(i int) *Expr {
	if i >= len(d.Args) {
		return nil
	}
	return d.Args[i]
}

// FunctionBody holds the facts gathered from a function body.
type FunctionBody struct {
	QueryReads       []QueryRead
	DataCalls        []string
	Responses        []ResponseFact
	ReadsRequestData bool
	RawDataKeys      []string
	Returns          []string // Dotted names returned directly
	ReturnedData     []string // Callees of returned X(...).data payloads
	Calls            []CallFact
}

// CallFact is a call that may delegate to a project function, typically a
// service method such as ItemService.create(request).
type CallFact struct {
	Callee        string
	PassesRequest bool // request or self.request is an argument
	Line          int
}

// QueryRead is a read of one key of the request query parameters.
type QueryRead struct {
	Key       string
	Coercion  string // "int", "float", "bool" or empty
	Subscript bool   // params["k"] rather than params.get("k")
	Default   *Expr
	Line      int
}

// GetSerializer marks a response built from self.get_serializer(...).
const GetSerializer = "@get_serializer"

// ResponseFact describes one "return Response(...)" statement.
type ResponseFact struct {
	Schema string // Callee the payload was built from, GetSerializer, or empty
	Status int    // Explicit status code, 0 if none
	Line   int
}

// Import binds a local name to an absolute dotted target.
type Import struct {
	Local  string
	Target string
	Line   int
}

// Assignment is a module-level assignment.
type Assignment struct {
	Target    string
	Value     *Expr
	Augmented bool // "+="
	Line      int
}

// Module is the module-level view of one source file.
type Module struct {
	Path        string // Dotted module path
	File        string
	IsPackage   bool // __init__.py
	Imports     map[string]Import
	Stars       []string // Modules imported with "from x import *"
	Assignments []Assignment
	Calls       []*Expr // Module-level call statements, e.g. router.register(...)
}

// Package returns the package that relative imports are resolved against.
func (m *Module) Package() string {
	if m.IsPackage {
		return m.Path
	}
	if i := strings.LastIndex(m.Path, "."); i >= 0 {
		return m.Path[:i]
	}
	return ""
}

// Attribute returns the last class-level attribute with the given name.
func (s *Symbol) Attribute(name string) (Attribute, bool) {
	return lastAttribute(s.Attributes, name)
}

// MetaAttribute returns an attribute of the inner Meta class.
func (s *Symbol) MetaAttribute(name string) (Attribute, bool) {
	return lastAttribute(s.Meta, name)
}

// Decorator returns the first decorator whose last name component is one of
// names.
func (s *Symbol) Decorator(names ...string) (DecoratorRef, bool) {
	for _, d := range s.Decorators {
		last := LastComponent(d.Name)
		for _, n := range names {
			if last == n {
				return d, true
			}
		}
	}
	return DecoratorRef{}, false
}

func lastAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for i := len(attrs) - 1; i >= 0; i-- {
		if attrs[i].Name == name {
			return attrs[i], true
		}
	}
	return Attribute{}, false
}

// LastComponent returns the part of a dotted name after the final dot.
func LastComponent(dotted string) string {
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}
