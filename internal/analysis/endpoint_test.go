package analysis

import (
	"testing"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for EndpointResolver:
// - HTTP-named functions become methods, case-insensitively and in fixed order
// - Generic views expose their default methods without any code
// - ViewSets map list/create/... to methods and @action functions to child endpoints
// - A class under an unknown base counts as a handler when it defines get(self, request)
//   or names its first argument req or *request; get(self, name) does not count
// - @api_view functions become function endpoints with their method list
// - Routes come from urlpatterns, includes and routers, then route_path, then the policy
// - A subclass function hides the inherited one and Base names the parent handler
// - Non-literal method lists fall back to GET with a warning

const viewsHeader = "from rest_framework.views import APIView\nfrom rest_framework.response import Response\n\n"

func TestEndpoint_HTTPFunctions(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"app/views.py": viewsHeader + `class ItemView(APIView):
    """Items in the catalog."""

    def delete(self, request, pk):
        return Response(status=204)

    def GET(self, request):
        return Response([])

    def helper(self):
        pass
`,
	})

	require.Len(t, result.Endpoints, 1)
	e := result.Endpoints[0]
	assert.Equal(t, "app.views.ItemView", e.Name)
	assert.Equal(t, "ItemView", e.Title)
	assert.Equal(t, model.KindClass, e.Kind)
	assert.Equal(t, "Items in the catalog.", e.Description)
	assert.Equal(t, []model.Method{model.GET, model.DELETE}, e.SortedMethods())
	assert.Equal(t, "GET", e.Methods[model.GET].Function)

	assert.Equal(t, "/item/", e.Path)
	assert.True(t, e.HeuristicPath)
	notes := warningsOf(collector, diag.KindHeuristic)
	require.Len(t, notes, 1)
	assert.Equal(t, diag.SeverityInfo, notes[0].Severity)
	assert.Contains(t, notes[0].Message, "kebab")
}

func TestEndpoint_GenericDefaults(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"app/views.py": `from rest_framework import generics


class ItemList(generics.ListCreateAPIView):
    pass


class ItemDetail(generics.RetrieveUpdateDestroyAPIView):
    def delete(self, request, pk):
        pass
`,
	})

	list := findEndpoint(t, result, "app.views.ItemList")
	assert.Equal(t, []model.Method{model.GET, model.POST}, list.SortedMethods())
	assert.Empty(t, list.Methods[model.GET].Function)

	detail := findEndpoint(t, result, "app.views.ItemDetail")
	assert.Equal(t, []model.Method{model.GET, model.PUT, model.PATCH, model.DELETE}, detail.SortedMethods())
	assert.Equal(t, "delete", detail.Methods[model.DELETE].Function)
}

func TestEndpoint_ViewSetAndActions(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"app/views.py": `from rest_framework import viewsets
from rest_framework.decorators import action


class ThingViewSet(viewsets.ViewSet):
    def list(self, request):
        pass

    def create(self, request):
        pass

    @action(detail=True, methods=["post", "Delete"])
    def publish(self, request, pk=None):
        """Publish a thing."""
        pass

    @action(detail=False, url_path="recent-items")
    def recent_things(self, request):
        pass
`,
		"app/urls.py": `from django.urls import include, path
from rest_framework.routers import DefaultRouter

from .views import ThingViewSet

router = DefaultRouter()
router.register("things", ThingViewSet)

urlpatterns = [
    path("api/", include(router.urls)),
]
`,
	})

	require.Len(t, result.Endpoints, 1)
	vs := result.Endpoints[0]
	assert.Equal(t, "/api/things/", vs.Path)
	assert.False(t, vs.HeuristicPath)
	assert.Equal(t, []model.Method{model.GET, model.POST}, vs.SortedMethods())
	assert.Equal(t, "list", vs.Methods[model.GET].Function)
	assert.Equal(t, "create", vs.Methods[model.POST].Function)

	require.Len(t, vs.Actions, 2)
	publish := vs.Actions[0]
	assert.Equal(t, "app.views.ThingViewSet.publish", publish.Name)
	assert.Equal(t, model.KindAction, publish.Kind)
	assert.Equal(t, "/api/things/{pk}/publish/", publish.Path)
	assert.Equal(t, []model.Method{model.POST, model.DELETE}, publish.SortedMethods())
	assert.Equal(t, "Publish a thing.", publish.Methods[model.POST].Summary)

	recent := findEndpoint(t, result, "app.views.ThingViewSet.recent_things")
	assert.Equal(t, "/api/things/recent-items/", recent.Path)
	assert.Equal(t, []model.Method{model.GET}, recent.SortedMethods())
}

func TestEndpoint_UnknownBaseHeuristic(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"app/views.py": `from vendor.web import VendorView


class LegacyView(VendorView):
    route_path = "legacy/<int:pk>/"

    def get(self, request, pk):
        pass


class NotAHandler(VendorView):
    def get(self, key):
        pass
`,
	})

	require.Len(t, result.Endpoints, 1)
	e := result.Endpoints[0]
	assert.Equal(t, "app.views.LegacyView", e.Name)
	assert.Equal(t, "/legacy/{pk}/", e.Path)
	assert.False(t, e.HeuristicPath)

	notes := warningsOf(collector, diag.KindHeuristic)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "VendorView")

	unresolved := warningsOf(collector, diag.KindUnresolved)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "app.views.LegacyView", unresolved[0].Symbol)
}

func TestEndpoint_UnknownBaseRequestNames(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"app/views.py": `from vendor.web import VendorView


class ShortView(VendorView):
    def get(self, req):
        pass


class WrappedView(VendorView):
    def post(self, http_request):
        pass


class Lookup(VendorView):
    def get(self, name):
        pass
`,
	})

	var names []string
	for _, e := range result.Endpoints {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"app.views.ShortView", "app.views.WrappedView"}, names)
}

func TestEndpoint_APIViewFunctions(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"app/views.py": `from rest_framework.decorators import api_view

METHODS = ["GET"]


@api_view(["GET", "POST"])
def item_list(request):
    pass


@api_view()
def health(request):
    pass


@api_view(METHODS)
def dynamic(request):
    pass


def not_exposed(request):
    pass
`,
		"app/urls.py": `from django.urls import path

from . import views

urlpatterns = [
    path("items/", views.item_list),
]
`,
	})

	require.Len(t, result.Endpoints, 3)

	items := findEndpoint(t, result, "app.views.item_list")
	assert.Equal(t, model.KindFunction, items.Kind)
	assert.Equal(t, "/items/", items.Path)
	assert.Equal(t, []model.Method{model.GET, model.POST}, items.SortedMethods())

	health := findEndpoint(t, result, "app.views.health")
	assert.Equal(t, "/health/", health.Path)
	assert.True(t, health.HeuristicPath)
	assert.Equal(t, []model.Method{model.GET}, health.SortedMethods())

	dynamic := findEndpoint(t, result, "app.views.dynamic")
	assert.Equal(t, []model.Method{model.GET}, dynamic.SortedMethods())
	unsupported := warningsOf(collector, diag.KindUnsupported)
	require.Len(t, unsupported, 1)
	assert.Contains(t, unsupported[0].Message, "METHODS")
}

func TestEndpoint_URLConfIncludes(t *testing.T) {
	t.Parallel()

	result, collector := analyze(t, map[string]string{
		"project/urls.py": `from django.urls import include, path, re_path

urlpatterns = [
    path("api/v1/", include("shop.urls")),
    re_path(r"^legacy/(?P<slug>[-\w]+)/$", "shop.views.Legacy"),
]
`,
		"shop/urls.py": `from django.urls import path

from shop.views import ItemDetail, ItemList
from vendor.views import VendorView

urlpatterns = [
    path("items/", ItemList.as_view(), name="items"),
    path("items/<int:pk>/", ItemDetail.as_view()),
    path("again/", ItemList.as_view()),
    path("vendor/", VendorView.as_view()),
    path("missing/", Missing.as_view()),
]
`,
		"shop/views.py": viewsHeader + `class ItemList(APIView):
    def get(self, request):
        pass


class ItemDetail(APIView):
    def get(self, request, pk):
        pass
`,
	})

	assert.Equal(t, "/api/v1/items/", findEndpoint(t, result, "shop.views.ItemList").Path)
	assert.Equal(t, "/api/v1/items/{pk}/", findEndpoint(t, result, "shop.views.ItemDetail").Path)

	unresolved := warningsOf(collector, diag.KindUnresolved)
	require.Len(t, unresolved, 1, "imported third-party views are not reported")
	assert.Contains(t, unresolved[0].Message, "Missing")
	assert.Equal(t, "shop/urls.py", unresolved[0].File)
}

func TestEndpoint_RoutePolicy(t *testing.T) {
	t.Parallel()

	table, collector := buildTable(t, map[string]string{
		"app/views.py": viewsHeader + `class HTTPItemListAPIView(APIView):
    def get(self, request):
        pass
`,
	})
	policy, err := ParseRoutePolicy("snake")
	require.NoError(t, err)

	result := Analyze(table, Options{RoutePolicy: policy}, collector)
	require.Len(t, result.Endpoints, 1)
	assert.Equal(t, "/http_item_list/", result.Endpoints[0].Path)
}

func TestEndpoint_SubclassOverride(t *testing.T) {
	t.Parallel()

	result, _ := analyze(t, map[string]string{
		"app/views.py": viewsHeader + `class BaseItemView(APIView):
    route_path = "items/"

    def get(self, request):
        """Base listing."""
        pass

    def post(self, request):
        pass


class ItemView(BaseItemView):
    def get(self, request):
        """Filtered listing."""
        pass
`,
	})

	require.Len(t, result.Endpoints, 2)
	child := findEndpoint(t, result, "app.views.ItemView")
	assert.Equal(t, "app.views.BaseItemView", child.Base)
	assert.Equal(t, "/items/", child.Path, "route attribute is inherited")
	assert.Equal(t, "Filtered listing.", child.Methods[model.GET].Summary)
	assert.Contains(t, child.Methods, model.POST)

	base := findEndpoint(t, result, "app.views.BaseItemView")
	assert.Empty(t, base.Base)
	assert.Equal(t, "Base listing.", base.Methods[model.GET].Summary)
}
