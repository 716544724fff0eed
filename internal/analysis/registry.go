// Package analysis turns the symbol table into schemas, endpoints and method
// bindings. Every stage reads the finished table; nothing here touches
// syntax trees.
package analysis

import (
	"github.com/mvp-joe/docmint/internal/model"
)

// Default base class names recognized by simple name.
var (
	DefaultHandlerBases = []string{
		"APIView",
		"GenericAPIView",
		"ListAPIView",
		"RetrieveAPIView",
		"CreateAPIView",
		"UpdateAPIView",
		"DestroyAPIView",
		"ListCreateAPIView",
		"RetrieveUpdateAPIView",
		"RetrieveDestroyAPIView",
		"RetrieveUpdateDestroyAPIView",
		"ViewSet",
		"GenericViewSet",
		"ModelViewSet",
		"ReadOnlyModelViewSet",
		"ViewSetMixin",
	}

	DefaultSchemaBases = []string{
		"Serializer",
		"ModelSerializer",
		"HyperlinkedModelSerializer",
		"ListSerializer",
		"BaseSerializer",
		"BaseModel",
	}

	DefaultModelBases = []string{
		"Model",
	}
)

// genericDefaults maps DRF generic views and mixins to the methods they
// implement without any code in the subclass.
var genericDefaults = map[string][]model.Method{
	"ListAPIView":                  {model.GET},
	"RetrieveAPIView":              {model.GET},
	"CreateAPIView":                {model.POST},
	"UpdateAPIView":                {model.PUT, model.PATCH},
	"DestroyAPIView":               {model.DELETE},
	"ListCreateAPIView":            {model.GET, model.POST},
	"RetrieveUpdateAPIView":        {model.GET, model.PUT, model.PATCH},
	"RetrieveDestroyAPIView":       {model.GET, model.DELETE},
	"RetrieveUpdateDestroyAPIView": {model.GET, model.PUT, model.PATCH, model.DELETE},
	"ModelViewSet":                 {model.GET, model.POST, model.PUT, model.PATCH, model.DELETE},
	"ReadOnlyModelViewSet":         {model.GET},
	"ListModelMixin":               {model.GET},
	"CreateModelMixin":             {model.POST},
	"RetrieveModelMixin":           {model.GET},
	"UpdateModelMixin":             {model.PUT, model.PATCH},
	"DestroyModelMixin":            {model.DELETE},
}

// viewSetActions maps the standard ViewSet action names to HTTP methods.
var viewSetActions = []struct {
	Name   string
	Method model.Method
}{
	{"list", model.GET},
	{"retrieve", model.GET},
	{"create", model.POST},
	{"update", model.PUT},
	{"partial_update", model.PATCH},
	{"destroy", model.DELETE},
}

// builtinBases never warrant an unresolved-reference warning.
var builtinBases = map[string]bool{
	"object":    true,
	"Exception": true,
	"ABC":       true,
	"Generic":   true,
	"Enum":      true,
	"dict":      true,
	"list":      true,
	"str":       true,
	"int":       true,
}

// Registry holds the base class names that classify classes.
type Registry struct {
	HandlerBases map[string]bool
	SchemaBases  map[string]bool
	ModelBases   map[string]bool
}

// NewRegistry creates a registry with the defaults plus any extra names.
func NewRegistry(extraHandlers, extraSchemas, extraModels []string) *Registry {
	return &Registry{
		HandlerBases: nameSet(DefaultHandlerBases, extraHandlers),
		SchemaBases:  nameSet(DefaultSchemaBases, extraSchemas),
		ModelBases:   nameSet(DefaultModelBases, extraModels),
	}
}

// DefaultRegistry creates a registry with only the default names.
func DefaultRegistry() *Registry {
	return NewRegistry(nil, nil, nil)
}

// known reports whether a simple name is in any registry set or the generic
// defaults table.
func (r *Registry) known(name string) bool {
	if r.HandlerBases[name] || r.SchemaBases[name] || r.ModelBases[name] || builtinBases[name] {
		return true
	}
	_, ok := genericDefaults[name]
	return ok
}

func nameSet(lists ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, list := range lists {
		for _, name := range list {
			if name != "" {
				set[name] = true
			}
		}
	}
	return set
}
