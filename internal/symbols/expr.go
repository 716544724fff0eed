package symbols

import (
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ExprKind tags the variant held by an Expr.
type ExprKind string

const (
	ExprName       ExprKind = "name" // Dotted identifier chain
	ExprAttribute  ExprKind = "attribute"
	ExprCall       ExprKind = "call"
	ExprSubscript  ExprKind = "subscript"
	ExprString     ExprKind = "string"
	ExprInt        ExprKind = "int"
	ExprFloat      ExprKind = "float"
	ExprBool       ExprKind = "bool"
	ExprNone       ExprKind = "none"
	ExprList       ExprKind = "list" // Lists and tuples
	ExprDict       ExprKind = "dict"
	ExprUnresolved ExprKind = "unresolved"
)

// Expr is a statically visible value. Anything that cannot be evaluated from
// syntax alone is kept as ExprUnresolved with its source text.
type Expr struct {
	Kind ExprKind
	Text string // Source text
	Line int

	Name   string // ExprName: dotted name; ExprAttribute: attribute
	Value  string // Literal value for strings and numbers
	Bool   bool
	Object *Expr // ExprAttribute object, ExprSubscript value, ExprCall callee

	Args     []*Expr // Call arguments, list items, subscript indices
	Keywords []Keyword
	Pairs    []Pair
}

// Keyword is a keyword argument of a call.
type Keyword struct {
	Name  string
	Value *Expr
}

// Pair is one dictionary entry.
type Pair struct {
	Key   *Expr
	Value *Expr
}

// Dotted returns the dotted name of a name expression, or "".
func (e *Expr) Dotted() string {
	if e == nil || e.Kind != ExprName {
		return ""
	}
	return e.Name
}

// Callee returns the dotted callee name of a call expression, or "".
func (e *Expr) Callee() string {
	if e == nil || e.Kind != ExprCall {
		return ""
	}
	return e.Object.Dotted()
}

// Keyword returns the value of a call's keyword argument, or nil.
func (e *Expr) Keyword(name string) *Expr {
	if e == nil {
		return nil
	}
	return findKeyword(e.Keywords, name)
}

// Arg returns the i-th positional argument, or nil.
func (e *Expr) Arg(i int) *Expr {
	if e == nil || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// StringValue returns the literal value of a string expression.
func (e *Expr) StringValue() (string, bool) {
	if e == nil || e.Kind != ExprString {
		return "", false
	}
	return e.Value, true
}

// IsTrue reports whether the expression is the literal True.
func (e *Expr) IsTrue() bool {
	return e != nil && e.Kind == ExprBool && e.Bool
}

// IsFalse reports whether the expression is the literal False.
func (e *Expr) IsFalse() bool {
	return e != nil && e.Kind == ExprBool && !e.Bool
}

// IntValue returns the value of an integer literal.
func (e *Expr) IntValue() (int, bool) {
	if e == nil || e.Kind != ExprInt {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(e.Value, "_", ""))
	return n, err == nil
}

// Strings returns the values of a list of string literals. ok is false when
// the expression is not a list or any item is not a string literal.
func (e *Expr) Strings() (values []string, ok bool) {
	if e == nil || e.Kind != ExprList {
		return nil, false
	}
	for _, item := range e.Args {
		s, isStr := item.StringValue()
		if !isStr {
			return nil, false
		}
		values = append(values, s)
	}
	return values, true
}

// Static reports whether the expression and everything nested in it is a
// literal or a name reference.
func (e *Expr) Static() bool {
	if e == nil {
		return true
	}
	switch e.Kind {
	case ExprUnresolved:
		return false
	case ExprCall:
		// Calls are evaluated at runtime, except schema constructors which
		// callers inspect by callee name.
		if e.Object.Dotted() == "" {
			return false
		}
	case ExprAttribute:
		return false
	}
	for _, a := range e.Args {
		if !a.Static() {
			return false
		}
	}
	for _, k := range e.Keywords {
		if !k.Value.Static() {
			return false
		}
	}
	for _, p := range e.Pairs {
		if !p.Key.Static() || !p.Value.Static() {
			return false
		}
	}
	return e.Object == nil || e.Object.Static()
}

func findKeyword(keywords []Keyword, name string) *Expr {
	for _, k := range keywords {
		if k.Name == name {
			return k.Value
		}
	}
	return nil
}

// exprFromNode converts a tree-sitter expression node.
func exprFromNode(node *sitter.Node, source []byte) *Expr {
	e := convertExpr(node, source)
	if e != nil && e.Line == 0 {
		e.Line = nodeLine(node)
	}
	return e
}

func convertExpr(node *sitter.Node, source []byte) *Expr {
	if node == nil {
		return nil
	}
	text := extractNodeText(node, source)

	switch node.Kind() {
	case "identifier":
		return &Expr{Kind: ExprName, Text: text, Name: text}

	case "attribute":
		object := exprFromNode(node.ChildByFieldName("object"), source)
		attr := extractNodeText(node.ChildByFieldName("attribute"), source)
		if object != nil && object.Kind == ExprName {
			return &Expr{Kind: ExprName, Text: text, Name: object.Name + "." + attr}
		}
		return &Expr{Kind: ExprAttribute, Text: text, Name: attr, Object: object}

	case "call":
		e := &Expr{Kind: ExprCall, Text: text, Object: exprFromNode(node.ChildByFieldName("function"), source)}
		args := node.ChildByFieldName("arguments")
		if args == nil || args.Kind() != "argument_list" {
			// Generator argument: f(x for x in y)
			if args != nil {
				e.Args = append(e.Args, unresolved(args, source))
			}
			return e
		}
		for i := uint(0); i < args.NamedChildCount(); i++ {
			arg := args.NamedChild(i)
			switch arg.Kind() {
			case "keyword_argument":
				e.Keywords = append(e.Keywords, Keyword{
					Name:  extractNodeText(arg.ChildByFieldName("name"), source),
					Value: exprFromNode(arg.ChildByFieldName("value"), source),
				})
			case "comment":
			default:
				e.Args = append(e.Args, exprFromNode(arg, source))
			}
		}
		return e

	case "subscript":
		value := node.ChildByFieldName("value")
		e := &Expr{Kind: ExprSubscript, Text: text, Object: exprFromNode(value, source)}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.StartByte() == value.StartByte() && child.EndByte() == value.EndByte() {
				continue
			}
			if child.Kind() == "comment" {
				continue
			}
			e.Args = append(e.Args, exprFromNode(child, source))
		}
		return e

	case "string":
		value, ok := stringLiteral(node, source)
		if !ok {
			return unresolved(node, source)
		}
		return &Expr{Kind: ExprString, Text: text, Value: value}

	case "concatenated_string":
		var sb strings.Builder
		for i := uint(0); i < node.NamedChildCount(); i++ {
			part, ok := stringLiteral(node.NamedChild(i), source)
			if !ok {
				return unresolved(node, source)
			}
			sb.WriteString(part)
		}
		return &Expr{Kind: ExprString, Text: text, Value: sb.String()}

	case "integer":
		return &Expr{Kind: ExprInt, Text: text, Value: text}

	case "float":
		return &Expr{Kind: ExprFloat, Text: text, Value: text}

	case "true", "false":
		return &Expr{Kind: ExprBool, Text: text, Bool: node.Kind() == "true"}

	case "none":
		return &Expr{Kind: ExprNone, Text: text}

	case "unary_operator":
		operand := exprFromNode(node.ChildByFieldName("argument"), source)
		if operand != nil && (operand.Kind == ExprInt || operand.Kind == ExprFloat) && strings.HasPrefix(text, "-") {
			return &Expr{Kind: operand.Kind, Text: text, Value: "-" + operand.Value}
		}
		return unresolved(node, source)

	case "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			return exprFromNode(node.NamedChild(0), source)
		}
		return unresolved(node, source)

	case "list", "tuple", "expression_list", "set":
		e := &Expr{Kind: ExprList, Text: text}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() == "comment" {
				continue
			}
			e.Args = append(e.Args, exprFromNode(child, source))
		}
		return e

	case "dictionary":
		e := &Expr{Kind: ExprDict, Text: text}
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			switch child.Kind() {
			case "pair":
				e.Pairs = append(e.Pairs, Pair{
					Key:   exprFromNode(child.ChildByFieldName("key"), source),
					Value: exprFromNode(child.ChildByFieldName("value"), source),
				})
			case "comment":
			default:
				// **spread
				e.Pairs = append(e.Pairs, Pair{Key: unresolved(child, source), Value: unresolved(child, source)})
			}
		}
		return e
	}

	return unresolved(node, source)
}

func unresolved(node *sitter.Node, source []byte) *Expr {
	return &Expr{Kind: ExprUnresolved, Text: extractNodeText(node, source)}
}

// stringLiteral returns the value of a plain string literal. f-strings with
// interpolations are not literals.
func stringLiteral(node *sitter.Node, source []byte) (string, bool) {
	if node == nil || node.Kind() != "string" {
		return "", false
	}
	var sb strings.Builder
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "interpolation":
			return "", false
		case "string_content":
			sb.WriteString(extractNodeText(child, source))
		case "escape_sequence":
			sb.WriteString(unescape(extractNodeText(child, source)))
		}
	}
	return sb.String(), true
}

func unescape(seq string) string {
	switch seq {
	case `\n`:
		return "\n"
	case `\t`:
		return "\t"
	case `\\`:
		return `\`
	case `\'`:
		return "'"
	case `\"`:
		return `"`
	}
	return seq
}
