package model

import "strings"

// fieldTypes maps field constructors and annotations to JSON schema types.
var fieldTypes = map[string][2]string{
	"CharField":              {"string", ""},
	"TextField":              {"string", ""},
	"SlugField":              {"string", ""},
	"RegexField":             {"string", ""},
	"ChoiceField":            {"string", ""},
	"FilePathField":          {"string", ""},
	"EmailField":             {"string", "email"},
	"URLField":               {"string", "uri"},
	"UUIDField":              {"string", "uuid"},
	"IPAddressField":         {"string", "ipv4"},
	"GenericIPAddressField":  {"string", "ip"},
	"DateField":              {"string", "date"},
	"DateTimeField":          {"string", "date-time"},
	"TimeField":              {"string", "time"},
	"DurationField":          {"string", "duration"},
	"FileField":              {"string", "binary"},
	"ImageField":             {"string", "binary"},
	"IntegerField":           {"integer", ""},
	"SmallIntegerField":      {"integer", ""},
	"BigIntegerField":        {"integer", "int64"},
	"PositiveIntegerField":   {"integer", ""},
	"AutoField":              {"integer", ""},
	"BigAutoField":           {"integer", "int64"},
	"PrimaryKeyRelatedField": {"integer", ""},
	"ForeignKey":             {"integer", ""},
	"OneToOneField":          {"integer", ""},
	"ManyToManyField":        {"integer", ""},
	"FloatField":             {"number", "float"},
	"DecimalField":           {"string", "decimal"},
	"BooleanField":           {"boolean", ""},
	"NullBooleanField":       {"boolean", ""},
	"JSONField":              {"object", ""},
	"DictField":              {"object", ""},
	"HStoreField":            {"object", ""},
	"SerializerMethodField":  {"string", ""},
	"str":                    {"string", ""},
	"int":                    {"integer", ""},
	"float":                  {"number", ""},
	"bool":                   {"boolean", ""},
	"dict":                   {"object", ""},
	"Dict":                   {"object", ""},
	"datetime":               {"string", "date-time"},
	"date":                   {"string", "date"},
	"UUID":                   {"string", "uuid"},
	"Decimal":                {"string", "decimal"},
}

// JSONType returns the JSON schema type and format of a field's element,
// ignoring List. Unknown types are strings.
func JSONType(f Field) (typ, format string) {
	if f.Nested {
		return "object", ""
	}
	name := f.Type
	// Annotations keep their source text: Optional[List[int]] -> int
	if i := strings.LastIndex(name, "["); i >= 0 {
		name = strings.TrimRight(name[i+1:], "]")
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if t, ok := fieldTypes[name]; ok {
		return t[0], t[1]
	}
	return "string", ""
}
