package symbols

import (
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// querySources are the expressions that evaluate to the request's query
// parameters.
var querySources = map[string]bool{
	"request.query_params":      true,
	"request.GET":               true,
	"self.request.query_params": true,
	"self.request.GET":          true,
}

var requestData = map[string]bool{
	"request.data":      true,
	"self.request.data": true,
}

var coercions = map[string]bool{
	"int":   true,
	"float": true,
	"bool":  true,
}

var responseCallees = map[string]bool{
	"Response":     true,
	"JsonResponse": true,
}

var requestNames = map[string]bool{
	"request":      true,
	"self.request": true,
}

// bodyScanner gathers FunctionBody facts in one pre-order walk, which visits
// statements in source order.
type bodyScanner struct {
	source       []byte
	body         *FunctionBody
	queryAliases map[string]bool
	dataAliases  map[string]bool
	vars         map[string]string // Variable -> callee it was built from
	consumed     map[uint]bool     // Start bytes of reads already recorded
}

// newBodyScanner creates a scanner for a function with the given
// parameters. Query parameters and data read from any parameter count, so a
// service method taking the request as "req" is scanned like a view.
func newBodyScanner(source []byte, params []string) *bodyScanner {
	s := &bodyScanner{
		source:       source,
		body:         &FunctionBody{},
		queryAliases: make(map[string]bool),
		dataAliases:  make(map[string]bool),
		vars:         make(map[string]string),
		consumed:     make(map[uint]bool),
	}
	for _, p := range params {
		if p == "self" || p == "cls" {
			continue
		}
		s.queryAliases[p+".query_params"] = true
		s.queryAliases[p+".GET"] = true
		s.dataAliases[p+".data"] = true
	}
	return s
}

func (s *bodyScanner) scan(block *sitter.Node) *FunctionBody {
	if block == nil {
		return s.body
	}

	walkTree(block, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "function_definition", "class_definition", "decorated_definition":
			// Nested definitions have their own scope
			return sameNode(n, block)
		case "assignment":
			s.assignment(n)
		case "call":
			s.call(n)
		case "subscript":
			s.subscript(n)
		case "attribute":
			if s.isRequestDataName(exprFromNode(n, s.source).Dotted()) {
				s.body.ReadsRequestData = true
			}
		case "return_statement":
			s.returnStatement(n)
		}
		return true
	})
	return s.body
}

func (s *bodyScanner) assignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || left.Kind() != "identifier" {
		return
	}
	name := extractNodeText(left, s.source)
	value := exprFromNode(right, s.source)

	switch {
	case s.isQuerySource(value):
		s.queryAliases[name] = true
	case s.isRequestData(value):
		s.dataAliases[name] = true
	case value.Kind == ExprCall:
		if callee := normalizeCallee(value.Callee()); callee != "" {
			s.vars[name] = callee
		}
	}
}

func (s *bodyScanner) call(n *sitter.Node) {
	e := exprFromNode(n, s.source)
	callee := e.Callee()

	// int(params.get("k"))
	if coercions[callee] {
		if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
			inner := args.NamedChild(0)
			if read, ok := s.queryRead(inner); ok && !s.consumed[inner.StartByte()] {
				read.Coercion = callee
				s.record(inner, read)
			}
		}
	}

	if read, ok := s.queryRead(n); ok && !s.consumed[n.StartByte()] {
		s.record(n, read)
	}

	// request.data.get("k")
	if obj, method, ok := splitMethod(callee); ok && method == "get" && s.isRequestDataName(obj) {
		if key, ok := e.Arg(0).StringValue(); ok {
			s.body.RawDataKeys = appendUnique(s.body.RawDataKeys, key)
		}
	}

	if callee == "" {
		return
	}
	if data := e.Keyword("data"); data != nil || s.isRequestData(e.Arg(0)) {
		s.body.DataCalls = append(s.body.DataCalls, normalizeCallee(callee))
	}
	if delegates(callee) {
		s.body.Calls = append(s.body.Calls, CallFact{
			Callee:        callee,
			PassesRequest: passesRequest(e),
			Line:          nodeLine(n),
		})
	}
}

// delegates reports whether a callee may name a project function, such as
// ItemService.create or create_item. Calls on self, the request and the
// builtin coercions are left out.
func delegates(callee string) bool {
	first, _, _ := strings.Cut(callee, ".")
	switch first {
	case "self", "cls", "request", "super":
		return false
	}
	return !coercions[callee] && !responseCallees[callee]
}

func passesRequest(e *Expr) bool {
	for _, a := range e.Args {
		if requestNames[a.Dotted()] {
			return true
		}
	}
	for _, k := range e.Keywords {
		if requestNames[k.Value.Dotted()] {
			return true
		}
	}
	return false
}

func (s *bodyScanner) subscript(n *sitter.Node) {
	if read, ok := s.queryRead(n); ok && !s.consumed[n.StartByte()] {
		s.record(n, read)
		return
	}
	e := exprFromNode(n, s.source)
	if s.isRequestData(e.Object) && len(e.Args) == 1 {
		if key, ok := e.Args[0].StringValue(); ok {
			s.body.RawDataKeys = appendUnique(s.body.RawDataKeys, key)
		}
	}
}

func (s *bodyScanner) record(n *sitter.Node, read QueryRead) {
	s.consumed[n.StartByte()] = true
	read.Line = nodeLine(n)
	s.body.QueryReads = append(s.body.QueryReads, read)
}

// queryRead recognizes params.get("k"[, default]), params.getlist("k") and
// params["k"].
func (s *bodyScanner) queryRead(n *sitter.Node) (QueryRead, bool) {
	e := exprFromNode(n, s.source)
	switch e.Kind {
	case ExprCall:
		obj, method, ok := splitMethod(e.Callee())
		if !ok || (method != "get" && method != "getlist") || !s.isQuerySourceName(obj) {
			return QueryRead{}, false
		}
		key, ok := e.Arg(0).StringValue()
		if !ok {
			return QueryRead{}, false
		}
		def := e.Arg(1)
		if def == nil {
			def = e.Keyword("default")
		}
		return QueryRead{Key: key, Default: def}, true

	case ExprSubscript:
		if !s.isQuerySource(e.Object) || len(e.Args) != 1 {
			return QueryRead{}, false
		}
		key, ok := e.Args[0].StringValue()
		if !ok {
			return QueryRead{}, false
		}
		return QueryRead{Key: key, Subscript: true}, true
	}
	return QueryRead{}, false
}

func (s *bodyScanner) returnStatement(n *sitter.Node) {
	if n.NamedChildCount() == 0 {
		return
	}
	e := exprFromNode(n.NamedChild(0), s.source)

	if e.Kind == ExprName {
		s.body.Returns = append(s.body.Returns, e.Name)
		if schema := s.payloadSchema(e); schema != "" {
			s.body.ReturnedData = append(s.body.ReturnedData, schema)
		}
		return
	}
	if e.Kind != ExprCall || !responseCallees[LastComponent(e.Callee())] {
		if schema := s.payloadSchema(e); schema != "" {
			s.body.ReturnedData = append(s.body.ReturnedData, schema)
		}
		return
	}

	payload := e.Arg(0)
	if payload == nil {
		payload = e.Keyword("data")
	}
	status := e.Keyword("status")
	if status == nil {
		status = e.Arg(1)
	}

	s.body.Responses = append(s.body.Responses, ResponseFact{
		Schema: s.payloadSchema(payload),
		Status: statusCode(status),
		Line:   nodeLine(n),
	})
}

// payloadSchema finds the callee a response payload was built from:
// X(...).data, or v.data where v = X(...).
func (s *bodyScanner) payloadSchema(payload *Expr) string {
	if payload == nil {
		return ""
	}
	switch payload.Kind {
	case ExprAttribute:
		if payload.Name == "data" && payload.Object != nil && payload.Object.Kind == ExprCall {
			return normalizeCallee(payload.Object.Callee())
		}
	case ExprName:
		if v, ok := strings.CutSuffix(payload.Name, ".data"); ok {
			return s.vars[v]
		}
	}
	return ""
}

func (s *bodyScanner) isQuerySource(e *Expr) bool {
	return s.isQuerySourceName(e.Dotted())
}

func (s *bodyScanner) isQuerySourceName(name string) bool {
	return name != "" && (querySources[name] || s.queryAliases[name])
}

func (s *bodyScanner) isRequestData(e *Expr) bool {
	return s.isRequestDataName(e.Dotted())
}

func (s *bodyScanner) isRequestDataName(name string) bool {
	return name != "" && (requestData[name] || s.dataAliases[name])
}

// statusCode reads 201 or status.HTTP_201_CREATED.
func statusCode(e *Expr) int {
	if e == nil {
		return 0
	}
	if n, ok := e.IntValue(); ok {
		return n
	}
	name := LastComponent(e.Dotted())
	if !strings.HasPrefix(name, "HTTP_") {
		return 0
	}
	parts := strings.SplitN(strings.TrimPrefix(name, "HTTP_"), "_", 2)
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return n
}

func normalizeCallee(callee string) string {
	if callee == "self.get_serializer" {
		return GetSerializer
	}
	return callee
}

func splitMethod(callee string) (object, method string, ok bool) {
	i := strings.LastIndex(callee, ".")
	if i <= 0 {
		return "", "", false
	}
	return callee[:i], callee[i+1:], true
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
