package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// RoutePolicy derives a best-effort route from a handler class name when
// no URL configuration or route attribute names one.
type RoutePolicy interface {
	Name() string
	Route(className string) string
}

// Route policy names accepted by ParseRoutePolicy.
const (
	RouteKebab = "kebab"
	RouteSnake = "snake"
	RouteLower = "lower"
)

// ParseRoutePolicy returns the policy registered under name.
func ParseRoutePolicy(name string) (RoutePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RouteKebab:
		return separatorPolicy{name: RouteKebab, sep: "-"}, nil
	case RouteSnake:
		return separatorPolicy{name: RouteSnake, sep: "_"}, nil
	case RouteLower:
		return separatorPolicy{name: RouteLower, sep: ""}, nil
	}
	return nil, fmt.Errorf("unknown route policy %q", name)
}

// separatorPolicy strips the handler suffix, splits the class name into
// words and joins them lower-cased.
type separatorPolicy struct {
	name string
	sep  string
}

func (p separatorPolicy) Name() string { return p.name }

func (p separatorPolicy) Route(className string) string {
	words := splitWords(trimHandlerSuffix(className))
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return "/" + strings.Join(words, p.sep) + "/"
}

// handlerSuffixes are stripped from class names, longest first.
var handlerSuffixes = []string{"APIView", "ViewSet", "View"}

func trimHandlerSuffix(name string) string {
	for _, suffix := range handlerSuffixes {
		if trimmed := strings.TrimSuffix(name, suffix); trimmed != name && trimmed != "" {
			return trimmed
		}
	}
	return name
}

// splitWords splits CamelCase and snake_case names, keeping acronyms
// together: "HTTPItemList" -> ["HTTP", "Item", "List"].
func splitWords(name string) []string {
	var words []string
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' }) {
		runes := []rune(part)
		start := 0
		for i := 1; i < len(runes); i++ {
			prev, cur := runes[i-1], runes[i]
			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			boundary := unicode.IsLower(prev) && unicode.IsUpper(cur) ||
				unicode.IsUpper(prev) && unicode.IsUpper(cur) && next != 0 && unicode.IsLower(next) ||
				unicode.IsDigit(prev) != unicode.IsDigit(cur)
			if boundary {
				words = append(words, string(runes[start:i]))
				start = i
			}
		}
		words = append(words, string(runes[start:]))
	}
	return words
}

// reGroup matches named and unnamed regex groups in re_path patterns.
var reGroup = regexp.MustCompile(`\(\?P<(\w+)>[^)]*\)`)

// converterParam matches Django path converters such as <int:pk>.
var converterParam = regexp.MustCompile(`<(?:\w+:)?(\w+)>`)

// normalizePath turns a Django route into an OpenAPI-style path with {param}
// placeholders and a leading slash.
func normalizePath(route string) string {
	route = strings.TrimPrefix(route, "^")
	route = strings.TrimSuffix(route, "$")
	route = reGroup.ReplaceAllString(route, "{$1}")
	route = converterParam.ReplaceAllString(route, "{$1}")
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}

// joinPath joins two route fragments with exactly one slash between them.
func joinPath(prefix, suffix string) string {
	switch {
	case prefix == "":
		return normalizePath(suffix)
	case suffix == "":
		return normalizePath(prefix)
	}
	return normalizePath(strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(suffix, "/"))
}
