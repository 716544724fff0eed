package symbols

import (
	"strings"

	"github.com/mvp-joe/docmint/internal/source"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractor pulls definitions and module facts out of one parsed file.
type extractor struct {
	unit   *source.SourceUnit
	source []byte
	module *Module
	defs   []*Symbol
}

func newExtractor(unit *source.SourceUnit) *extractor {
	return &extractor{
		unit:   unit,
		source: unit.Source,
		module: &Module{
			Path:      unit.Module,
			File:      unit.RelPath,
			IsPackage: strings.HasSuffix(unit.RelPath, "__init__.py"),
			Imports:   make(map[string]Import),
		},
	}
}

// extract walks the module and returns the module facts plus every indexed
// definition in source order.
func (x *extractor) extract() (*Module, []*Symbol) {
	x.moduleStatements(x.unit.Root())
	return x.module, x.defs
}

func (x *extractor) moduleStatements(block *sitter.Node) {
	for i := uint(0); i < block.NamedChildCount(); i++ {
		stmt := block.NamedChild(i)
		switch stmt.Kind() {
		case "class_definition":
			x.class(stmt, nil, nil)
		case "function_definition":
			x.function(stmt, nil, nil)
		case "decorated_definition":
			x.decorated(stmt, nil)
		case "import_statement":
			x.importStatement(stmt)
		case "import_from_statement":
			x.importFromStatement(stmt)
		case "expression_statement":
			x.moduleExpression(stmt)
		case "if_statement", "try_statement", "with_statement":
			x.nestedBlocks(stmt)
		}
	}
}

// nestedBlocks indexes definitions guarded by module-level if/try/with.
func (x *extractor) nestedBlocks(node *sitter.Node) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "block":
			x.moduleStatements(child)
		case "elif_clause", "else_clause", "except_clause", "except_group_clause", "finally_clause":
			x.nestedBlocks(child)
		}
	}
}

func (x *extractor) decorated(node *sitter.Node, parent *Symbol) *Symbol {
	var decorators []DecoratorRef
	for _, d := range findChildrenByType(node, "decorator") {
		decorators = append(decorators, x.decorator(d))
	}

	def := node.ChildByFieldName("definition")
	if def == nil {
		return nil
	}
	switch def.Kind() {
	case "class_definition":
		return x.class(def, decorators, parent)
	case "function_definition":
		return x.function(def, decorators, parent)
	}
	return nil
}

func (x *extractor) decorator(node *sitter.Node) DecoratorRef {
	ref := DecoratorRef{Line: nodeLine(node), Resolved: true}
	if node.NamedChildCount() == 0 {
		return ref
	}

	e := exprFromNode(node.NamedChild(0), x.source)
	if e.Kind != ExprCall {
		ref.Name = e.Dotted()
		if ref.Name == "" {
			ref.Name = e.Text
			ref.Resolved = false
		}
		return ref
	}

	ref.Name = e.Callee()
	if ref.Name == "" {
		ref.Name = e.Object.Text
	}
	ref.Called = true
	ref.Args = e.Args
	ref.Keywords = e.Keywords
	ref.Resolved = e.Static()
	return ref
}

func (x *extractor) qualify(name string, parent *Symbol) string {
	if parent != nil {
		return parent.QualifiedName + "." + name
	}
	if x.module.Path == "" {
		return name
	}
	return x.module.Path + "." + name
}

func (x *extractor) class(node *sitter.Node, decorators []DecoratorRef, parent *Symbol) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := extractNodeText(nameNode, x.source)

	sym := &Symbol{
		QualifiedName: x.qualify(name, parent),
		Name:          name,
		Module:        x.module.Path,
		Kind:          KindClass,
		File:          x.module.File,
		Line:          nodeLine(node),
		Decorators:    decorators,
	}
	if parent != nil {
		sym.Parent = parent.QualifiedName
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			arg := supers.NamedChild(i)
			if arg.Kind() == "keyword_argument" || arg.Kind() == "comment" {
				continue
			}
			e := exprFromNode(arg, x.source)
			name := e.Dotted()
			if e.Kind == ExprSubscript {
				// Generic[T], BaseModel[...]
				name = e.Object.Dotted()
			}
			if name == "" {
				name = e.Text
			}
			sym.Bases = append(sym.Bases, BaseRef{Name: name, Line: nodeLine(arg), Expr: e})
		}
	}

	x.defs = append(x.defs, sym)
	x.classBody(sym, node.ChildByFieldName("body"))
	return sym
}

func (x *extractor) classBody(sym *Symbol, body *sitter.Node) {
	if body == nil {
		return
	}
	sym.Docstring = x.docstring(body)

	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		switch stmt.Kind() {
		case "expression_statement":
			if attr, ok := x.attribute(stmt); ok {
				sym.Attributes = append(sym.Attributes, attr)
			}
		case "function_definition":
			if m := x.function(stmt, nil, sym); m != nil {
				sym.Methods = append(sym.Methods, m.QualifiedName)
			}
		case "decorated_definition":
			def := stmt.ChildByFieldName("definition")
			if def != nil && def.Kind() == "class_definition" && x.isMeta(def) {
				sym.Meta = x.metaAttributes(def)
				continue
			}
			if m := x.decorated(stmt, sym); m != nil && m.Kind == KindFunction {
				sym.Methods = append(sym.Methods, m.QualifiedName)
			}
		case "class_definition":
			if x.isMeta(stmt) {
				sym.Meta = x.metaAttributes(stmt)
				continue
			}
			x.class(stmt, nil, sym)
		}
	}
}

func (x *extractor) isMeta(class *sitter.Node) bool {
	return extractNodeText(class.ChildByFieldName("name"), x.source) == "Meta"
}

func (x *extractor) metaAttributes(class *sitter.Node) []Attribute {
	var attrs []Attribute
	body := class.ChildByFieldName("body")
	if body == nil {
		return attrs
	}
	for _, stmt := range findChildrenByType(body, "expression_statement") {
		if attr, ok := x.attribute(stmt); ok {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// attribute reads "name = value", "name: T" and "name: T = value".
func (x *extractor) attribute(stmt *sitter.Node) (Attribute, bool) {
	if stmt.NamedChildCount() == 0 {
		return Attribute{}, false
	}
	assign := stmt.NamedChild(0)
	if assign.Kind() != "assignment" {
		return Attribute{}, false
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return Attribute{}, false
	}

	attr := Attribute{
		Name: extractNodeText(left, x.source),
		Line: nodeLine(stmt),
	}
	if typ := assign.ChildByFieldName("type"); typ != nil {
		attr.Annotation = x.annotation(typ)
	}
	if right := assign.ChildByFieldName("right"); right != nil {
		// a = b = value
		for right.Kind() == "assignment" && right.ChildByFieldName("right") != nil {
			right = right.ChildByFieldName("right")
		}
		attr.Value = exprFromNode(right, x.source)
	}
	return attr, true
}

// annotation converts a type node. The grammar wraps annotations in a
// "type" node holding a single expression.
func (x *extractor) annotation(typ *sitter.Node) *Expr {
	if typ.Kind() == "type" && typ.NamedChildCount() == 1 {
		inner := typ.NamedChild(0)
		if inner.Kind() == "generic_type" {
			return x.genericType(inner)
		}
		return exprFromNode(inner, x.source)
	}
	return exprFromNode(typ, x.source)
}

// genericType converts List[int] style annotations, which some grammar
// versions parse as generic_type(identifier, type_parameter).
func (x *extractor) genericType(node *sitter.Node) *Expr {
	e := &Expr{Kind: ExprSubscript, Text: extractNodeText(node, x.source)}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "type_parameter":
			for j := uint(0); j < child.NamedChildCount(); j++ {
				e.Args = append(e.Args, x.annotation(child.NamedChild(j)))
			}
		default:
			if e.Object == nil {
				e.Object = exprFromNode(child, x.source)
			}
		}
	}
	return e
}

func (x *extractor) function(node *sitter.Node, decorators []DecoratorRef, parent *Symbol) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := extractNodeText(nameNode, x.source)

	sym := &Symbol{
		QualifiedName: x.qualify(name, parent),
		Name:          name,
		Module:        x.module.Path,
		Kind:          KindFunction,
		File:          x.module.File,
		Line:          nodeLine(node),
		Decorators:    decorators,
		Params:        x.params(node.ChildByFieldName("parameters")),
	}
	if parent != nil {
		sym.Parent = parent.QualifiedName
	}

	body := node.ChildByFieldName("body")
	sym.Docstring = x.docstring(body)
	sym.Body = newBodyScanner(x.source, sym.Params).scan(body)

	x.defs = append(x.defs, sym)
	return sym
}

func (x *extractor) params(node *sitter.Node) []string {
	var params []string
	if node == nil {
		return params
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		p := node.NamedChild(i)
		switch p.Kind() {
		case "identifier":
			params = append(params, extractNodeText(p, x.source))
		case "typed_parameter":
			if id := findChildByType(p, "identifier"); id != nil {
				params = append(params, extractNodeText(id, x.source))
			}
		case "default_parameter", "typed_default_parameter":
			if n := p.ChildByFieldName("name"); n != nil {
				params = append(params, extractNodeText(n, x.source))
			}
		}
	}
	return params
}

// docstring returns the cleaned first-statement string of a body.
func (x *extractor) docstring(body *sitter.Node) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	value, ok := stringLiteral(first.NamedChild(0), x.source)
	if !ok {
		return ""
	}
	return cleanDocstring(value)
}

func cleanDocstring(doc string) string {
	lines := strings.Split(strings.TrimSpace(doc), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

func (x *extractor) importStatement(node *sitter.Node) {
	line := nodeLine(node)
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "dotted_name":
			// import a.b binds "a"
			dotted := extractNodeText(child, x.source)
			root := strings.SplitN(dotted, ".", 2)[0]
			x.module.Imports[root] = Import{Local: root, Target: root, Line: line}
		case "aliased_import":
			target := extractNodeText(child.ChildByFieldName("name"), x.source)
			alias := extractNodeText(child.ChildByFieldName("alias"), x.source)
			x.module.Imports[alias] = Import{Local: alias, Target: target, Line: line}
		}
	}
}

func (x *extractor) importFromStatement(node *sitter.Node) {
	line := nodeLine(node)
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}
	from := x.importSource(moduleNode)

	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if sameNode(child, moduleNode) {
			continue
		}
		switch child.Kind() {
		case "wildcard_import":
			x.module.Stars = append(x.module.Stars, from)
		case "dotted_name":
			name := extractNodeText(child, x.source)
			x.module.Imports[name] = Import{Local: name, Target: joinDotted(from, name), Line: line}
		case "aliased_import":
			name := extractNodeText(child.ChildByFieldName("name"), x.source)
			alias := extractNodeText(child.ChildByFieldName("alias"), x.source)
			x.module.Imports[alias] = Import{Local: alias, Target: joinDotted(from, name), Line: line}
		}
	}
}

// importSource resolves the module of a from-import, including relative
// imports against the current package.
func (x *extractor) importSource(node *sitter.Node) string {
	text := extractNodeText(node, x.source)
	if node.Kind() != "relative_import" {
		return text
	}

	dots := len(text) - len(strings.TrimLeft(text, "."))
	rest := strings.TrimSpace(text[dots:])

	base := x.module.Package()
	for level := 1; level < dots; level++ {
		if i := strings.LastIndex(base, "."); i >= 0 {
			base = base[:i]
		} else {
			base = ""
		}
	}
	return joinDotted(base, rest)
}

func (x *extractor) moduleExpression(stmt *sitter.Node) {
	if stmt.NamedChildCount() == 0 {
		return
	}
	expr := stmt.NamedChild(0)
	switch expr.Kind() {
	case "assignment", "augmented_assignment":
		left := expr.ChildByFieldName("left")
		right := expr.ChildByFieldName("right")
		if left == nil || right == nil || left.Kind() != "identifier" {
			return
		}
		x.module.Assignments = append(x.module.Assignments, Assignment{
			Target:    extractNodeText(left, x.source),
			Value:     exprFromNode(right, x.source),
			Augmented: expr.Kind() == "augmented_assignment",
			Line:      nodeLine(stmt),
		})
	case "call":
		x.module.Calls = append(x.module.Calls, exprFromNode(expr, x.source))
	}
}

func joinDotted(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "." + b
}
