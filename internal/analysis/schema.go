package analysis

import (
	"sort"
	"strings"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/mvp-joe/docmint/internal/symbols"
)

// listAnnotations wrap an element type in a list.
var listAnnotations = map[string]bool{
	"List":     true,
	"list":     true,
	"Sequence": true,
	"Set":      true,
	"set":      true,
	"Tuple":    true,
	"tuple":    true,
}

// listFields are field constructors that always hold lists.
var listFields = map[string]bool{
	"ListField":           true,
	"ManyToManyField":     true,
	"MultipleChoiceField": true,
}

// SchemaResolver builds schema definitions from classes. Results are
// memoized by qualified name.
type SchemaResolver struct {
	table      *symbols.Table
	hierarchy  *Hierarchy
	classifier *Classifier
	collector  *diag.Collector

	resolved   map[string]*model.Schema
	inProgress map[string]bool
}

// NewSchemaResolver creates a schema resolver.
func NewSchemaResolver(table *symbols.Table, hierarchy *Hierarchy, classifier *Classifier, collector *diag.Collector) *SchemaResolver {
	return &SchemaResolver{
		table:      table,
		hierarchy:  hierarchy,
		classifier: classifier,
		collector:  collector,
		resolved:   make(map[string]*model.Schema),
		inProgress: make(map[string]bool),
	}
}

// All resolves every schema class in the project, sorted by name.
func (r *SchemaResolver) All() []*model.Schema {
	var out []*model.Schema
	for _, class := range r.table.Classes() {
		if s, ok := r.Schema(class.QualifiedName); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schema returns the resolved schema for a class, or false when the class
// is not a schema.
func (r *SchemaResolver) Schema(qualifiedName string) (*model.Schema, bool) {
	if s, ok := r.resolved[qualifiedName]; ok {
		return s, true
	}
	class, ok := r.table.Get(qualifiedName)
	if !ok || !r.classifier.IsSchema(class) {
		return nil, false
	}
	return r.resolve(class), true
}

// Resolve finds the schema a dotted reference in module points to.
func (r *SchemaResolver) Resolve(module, dotted string) (*model.Schema, symbols.Match) {
	q, match := r.Ref(module, dotted)
	if match == symbols.MatchNone {
		return nil, symbols.MatchNone
	}
	s, _ := r.Schema(q)
	return s, match
}

// Ref resolves a dotted reference to the qualified name of a schema class
// without resolving the schema's fields.
func (r *SchemaResolver) Ref(module, dotted string) (string, symbols.Match) {
	if dotted == "" {
		return "", symbols.MatchNone
	}
	q, match := r.table.Resolve(module, dotted)
	if match == symbols.MatchNone {
		return "", symbols.MatchNone
	}
	class, ok := r.table.Get(q)
	if !ok || !r.classifier.IsSchema(class) {
		return "", symbols.MatchNone
	}
	return q, match
}

func (r *SchemaResolver) resolve(class *symbols.Symbol) *model.Schema {
	if s, ok := r.resolved[class.QualifiedName]; ok {
		return s
	}

	if r.inProgress[class.QualifiedName] {
		return &model.Schema{Name: class.QualifiedName, Title: class.Name, Cyclic: true}
	}
	r.inProgress[class.QualifiedName] = true
	defer delete(r.inProgress, class.QualifiedName)

	own := r.localFields(class)
	s := &model.Schema{
		Name:        class.QualifiedName,
		Title:       class.Name,
		OwnFields:   own,
		Description: class.Docstring,
		File:        class.File,
		Line:        class.Line,
	}

	if r.hierarchy.Cyclic(class) {
		// The hierarchy already warned about the cycle
		s.Cyclic = true
		s.Fields = append([]model.Field(nil), own...)
		r.resolved[class.QualifiedName] = s
		return s
	}

	r.hierarchy.warnUnknownBases(class)

	var inherited []model.Field
	for _, base := range r.hierarchy.DirectBases(class) {
		if base.Symbol == nil || !r.classifier.IsSchema(base.Symbol) {
			continue
		}
		parent := r.resolve(base.Symbol)
		s.Base = parent.Name
		inherited = parent.Fields
		break
	}
	s.Fields = mergeFields(inherited, own)

	r.expandMeta(class, s)

	r.resolved[class.QualifiedName] = s
	return s
}

// mergeFields puts the base fields first and lets a same-named own field
// replace the base field at the own field's position.
func mergeFields(base, own []model.Field) []model.Field {
	overridden := make(map[string]bool, len(own))
	for _, f := range own {
		overridden[f.Name] = true
	}
	out := make([]model.Field, 0, len(base)+len(own))
	for _, f := range base {
		if !overridden[f.Name] {
			out = append(out, f)
		}
	}
	return append(out, own...)
}

// localFields extracts the fields a class declares itself, in declaration
// order. A repeated name keeps its first position and its last value.
func (r *SchemaResolver) localFields(class *symbols.Symbol) []model.Field {
	var fields []model.Field
	positions := make(map[string]int)

	for _, attr := range class.Attributes {
		if strings.HasPrefix(attr.Name, "_") {
			continue
		}

		var (
			field model.Field
			ok    bool
		)
		if attr.Annotation != nil {
			field, ok = r.annotatedField(class, attr)
		} else if attr.Value != nil && attr.Value.Kind == symbols.ExprCall {
			field, ok = r.callField(class, attr.Name, attr.Value)
		}
		if !ok {
			continue
		}

		if i, seen := positions[field.Name]; seen {
			fields[i] = field
			continue
		}
		positions[field.Name] = len(fields)
		fields = append(fields, field)
	}
	return fields
}

// callField reads "name = Constructor(...)".
func (r *SchemaResolver) callField(class *symbols.Symbol, name string, call *symbols.Expr) (model.Field, bool) {
	callee := call.Callee()
	if callee == "" {
		return model.Field{}, false
	}

	field := model.Field{
		Name:     name,
		Type:     symbols.LastComponent(callee),
		Required: true,
	}

	if ref, match := r.Ref(class.Module, callee); ref != "" {
		r.noteHeuristic(class, callee, ref, match)
		field.Nested = true
		field.Ref = ref
	} else if !isFieldConstructor(callee) {
		if !strings.HasSuffix(field.Type, "Serializer") {
			return model.Field{}, false
		}
		if _, match := r.table.Resolve(class.Module, callee); match == symbols.MatchNone {
			r.collector.Warn(diag.KindUnresolved, class.File, class.Line, class.QualifiedName,
				"field %s references unknown schema %s", name, callee)
		}
	}

	if call.Keyword("many").IsTrue() || listFields[field.Type] {
		field.List = true
	}
	if child := call.Keyword("child"); child != nil && child.Kind == symbols.ExprCall {
		field.List = true
		if ref, match := r.Ref(class.Module, child.Callee()); ref != "" {
			r.noteHeuristic(class, child.Callee(), ref, match)
			field.Nested = true
			field.Ref = ref
		}
	}

	if call.Keyword("required").IsFalse() || call.Keyword("default") != nil || call.Keyword("blank").IsTrue() {
		field.Required = false
	}
	if call.Keyword("read_only").IsTrue() {
		field.ReadOnly = true
		field.Required = false
	}
	field.WriteOnly = call.Keyword("write_only").IsTrue()
	field.Nullable = call.Keyword("allow_null").IsTrue() || call.Keyword("null").IsTrue()
	if help, ok := call.Keyword("help_text").StringValue(); ok {
		field.HelpText = help
	}
	return field, true
}

// annotatedField reads "name: T" and "name: T = default".
func (r *SchemaResolver) annotatedField(class *symbols.Symbol, attr symbols.Attribute) (model.Field, bool) {
	ann := attr.Annotation
	field := model.Field{
		Name:     attr.Name,
		Type:     ann.Text,
		Required: attr.Value == nil,
	}
	if ann.Dotted() == "ClassVar" || ann.Kind == symbols.ExprSubscript && symbols.LastComponent(ann.Object.Dotted()) == "ClassVar" {
		return model.Field{}, false
	}

	ann = unwrapAnnotation(ann, &field)

	if v := attr.Value; v != nil && symbols.LastComponent(v.Callee()) == "Field" {
		first := v.Arg(0)
		field.Required = first != nil && first.Text == "..." ||
			first == nil && v.Keyword("default") == nil && v.Keyword("default_factory") == nil
		if desc, ok := v.Keyword("description").StringValue(); ok {
			field.HelpText = desc
		}
	}

	if name := ann.Dotted(); name != "" {
		if ref, match := r.Ref(class.Module, name); ref != "" {
			r.noteHeuristic(class, name, ref, match)
			field.Nested = true
			field.Ref = ref
		}
	}
	return field, true
}

// unwrapAnnotation strips Optional[...] and list wrappers such as
// Optional[List[X]], setting the matching flags on field.
func unwrapAnnotation(ann *symbols.Expr, field *model.Field) *symbols.Expr {
	for depth := 0; depth < 4; depth++ {
		if ann.Kind != symbols.ExprSubscript || len(ann.Args) == 0 {
			return ann
		}
		switch outer := symbols.LastComponent(ann.Object.Dotted()); {
		case outer == "Optional":
			field.Required = false
			field.Nullable = true
		case listAnnotations[outer]:
			field.List = true
		default:
			return ann
		}
		ann = ann.Args[0]
	}
	return ann
}

// expandMeta adds model fields named by a ModelSerializer's Meta class.
func (r *SchemaResolver) expandMeta(class *symbols.Symbol, s *model.Schema) {
	modelAttr, ok := class.MetaAttribute("model")
	if !ok {
		return
	}
	ref := modelAttr.Value.Dotted()
	target, ok := r.classifier.resolveClass(class.Module, ref)
	if !ok {
		r.collector.Warn(diag.KindUnresolved, class.File, modelAttr.Line, class.QualifiedName,
			"Meta.model %s could not be resolved", modelAttr.Value.Text)
		return
	}
	s.Model = target.QualifiedName

	available := r.modelFields(target)
	declared := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = true
	}

	var wanted []string
	if fieldsAttr, ok := class.MetaAttribute("fields"); ok {
		if v, isStr := fieldsAttr.Value.StringValue(); isStr && v == "__all__" {
			wanted = fieldNames(available)
		} else if names, isList := fieldsAttr.Value.Strings(); isList {
			wanted = names
		}
	} else if excludeAttr, ok := class.MetaAttribute("exclude"); ok {
		excluded := make(map[string]bool)
		names, _ := excludeAttr.Value.Strings()
		for _, n := range names {
			excluded[n] = true
		}
		for _, n := range fieldNames(available) {
			if !excluded[n] {
				wanted = append(wanted, n)
			}
		}
	}

	byName := make(map[string]model.Field, len(available))
	for _, f := range available {
		byName[f.Name] = f
	}
	for _, name := range wanted {
		f, ok := byName[name]
		if !ok || declared[name] {
			continue
		}
		declared[name] = true
		s.Fields = append(s.Fields, f)
	}

	if roAttr, ok := class.MetaAttribute("read_only_fields"); ok {
		names, _ := roAttr.Value.Strings()
		readOnly := make(map[string]bool, len(names))
		for _, n := range names {
			readOnly[n] = true
		}
		for i := range s.Fields {
			if readOnly[s.Fields[i].Name] {
				s.Fields[i].ReadOnly = true
				s.Fields[i].Required = false
			}
		}
	}
}

// modelFields returns a model's field declarations including inherited
// ones, furthest ancestor first.
func (r *SchemaResolver) modelFields(class *symbols.Symbol) []model.Field {
	lineage := r.hierarchy.Lineage(class)
	var fields []model.Field
	for i := len(lineage) - 1; i >= 0; i-- {
		var own []model.Field
		for _, attr := range lineage[i].Attributes {
			if attr.Value == nil || attr.Value.Kind != symbols.ExprCall || !isFieldConstructor(attr.Value.Callee()) {
				continue
			}
			f, ok := r.callField(lineage[i], attr.Name, attr.Value)
			if ok {
				own = append(own, f)
			}
		}
		fields = mergeFields(fields, own)
	}
	return fields
}

func (r *SchemaResolver) noteHeuristic(class *symbols.Symbol, ref, target string, match symbols.Match) {
	if match != symbols.MatchHeuristic {
		return
	}
	r.collector.Note(diag.KindHeuristic, class.File, class.Line, class.QualifiedName,
		"%s matched %s by name only", ref, target)
}

func fieldNames(fields []model.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
