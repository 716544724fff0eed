package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Analyzer:
// - Ten files with one syntax error: nine analyzed, one parse-failure naming the bad file
// - End to end: URL-conf paths, class defaults and a per-method override
// - Ignore patterns keep files out of discovery
// - Missing root fails with ErrInvalidRoot, an empty project with ErrNoSourceFiles
// - Unknown route policy is rejected by New
// - Progress callbacks fire once per stage and once per file
// - Extra diagnostics are carried into the model
// - Cancelled context aborts the run

const serializersPy = `from rest_framework import serializers


class ItemIn(serializers.Serializer):
    name = serializers.CharField()


class ItemCreateIn(serializers.Serializer):
    name = serializers.CharField()
    sku = serializers.CharField()


class ItemOut(serializers.Serializer):
    id = serializers.IntegerField(read_only=True)
    name = serializers.CharField()
`

const viewsPy = `from rest_framework.response import Response
from rest_framework.views import APIView

from .serializers import ItemCreateIn, ItemIn, ItemOut


class ItemView(APIView):
    request_serializer_class = ItemIn
    response_serializer_class = ItemOut
    request_serializer_classes = {"post": ItemCreateIn}

    def get(self, request):
        page = request.query_params.get("page")
        limit = int(request.query_params.get("limit", 20))
        return Response([])

    def post(self, request):
        return Response({})
`

const shopURLsPy = `from django.urls import path

from shop.views import ItemView

urlpatterns = [
    path("items/", ItemView.as_view()),
]
`

const projectURLsPy = `from django.urls import include, path

urlpatterns = [
    path("api/v1/", include("shop.urls")),
]
`

// writeProject lays out a small Django project: nine valid files.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"manage.py":           "import os\nimport sys\n",
		"project/__init__.py": "",
		"project/settings.py": "DEBUG = True\nINSTALLED_APPS = [\"shop\"]\n",
		"project/urls.py":     projectURLsPy,
		"shop/__init__.py":    "",
		"shop/apps.py":        "from django.apps import AppConfig\n\n\nclass ShopConfig(AppConfig):\n    name = \"shop\"\n",
		"shop/serializers.py": serializersPy,
		"shop/urls.py":        shopURLsPy,
		"shop/views.py":       viewsPy,
	}
	for rel, content := range files {
		writeFile(t, root, rel, content)
	}
	return root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func run(t *testing.T, cfg *Config, progress ProgressReporter) (*model.Model, *Stats, error) {
	t.Helper()
	a, err := New(cfg, progress)
	require.NoError(t, err)
	return a.Run(context.Background())
}

func TestAnalyzer_OneBrokenFileAmongTen(t *testing.T) {
	t.Parallel()

	root := writeProject(t)
	writeFile(t, root, "shop/broken.py", "def broken(:\n    return\n")

	m, stats, err := run(t, &Config{RootDir: root, Workers: 4}, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.FilesDiscovered)
	assert.Equal(t, 10, stats.FilesParsed)
	assert.Equal(t, 1, stats.FilesSkipped)

	var failures []diag.Diagnostic
	for _, w := range m.Warnings {
		if w.Kind == diag.KindParseFailure {
			failures = append(failures, w)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, "shop/broken.py", failures[0].File)

	// The remaining files still produce the endpoint
	require.Len(t, m.Endpoints, 1)
	assert.Equal(t, "shop.views.ItemView", m.Endpoints[0].Name)
}

func TestAnalyzer_EndToEnd(t *testing.T) {
	t.Parallel()

	root := writeProject(t)
	m, stats, err := run(t, &Config{RootDir: root, ProjectName: "Shop"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Shop", m.Project)
	assert.Equal(t, 9, stats.FilesParsed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Equal(t, 1, stats.Endpoints)
	assert.Equal(t, 2, stats.Schemas)
	assert.Positive(t, stats.Symbols)

	require.Len(t, m.Endpoints, 1)
	e := m.Endpoints[0]
	assert.Equal(t, "/api/v1/items/", e.Path)
	assert.False(t, e.HeuristicPath)
	require.Equal(t, []model.Method{model.GET, model.POST}, e.SortedMethods())

	get := e.Methods[model.GET]
	assert.Empty(t, get.Request)
	assert.Equal(t, "shop.serializers.ItemOut", get.Response)
	assert.Equal(t, []model.QueryParameter{
		{Name: "page", Type: "string"},
		{Name: "limit", Type: "integer", Description: "Defaults to 20."},
	}, get.QueryParameters)

	post := e.Methods[model.POST]
	assert.Equal(t, "shop.serializers.ItemCreateIn", post.Request)
	assert.Equal(t, "shop.serializers.ItemOut", post.Response)
	assert.Equal(t, 201, post.Status)

	var names []string
	for _, s := range m.Schemas {
		names = append(names, s.Name)
	}
	// ItemIn is shadowed by the POST override and GET carries no body
	assert.Equal(t, []string{
		"shop.serializers.ItemCreateIn",
		"shop.serializers.ItemOut",
	}, names)
}

func TestAnalyzer_DefaultProjectName(t *testing.T) {
	t.Parallel()

	root := writeProject(t)
	m, _, err := run(t, &Config{RootDir: root}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(root), m.Project)
}

func TestAnalyzer_IgnorePatterns(t *testing.T) {
	t.Parallel()

	root := writeProject(t)
	writeFile(t, root, ".venv/lib/site.py", "def broken(:\n")
	writeFile(t, root, "shop/migrations/0001_initial.py", "def broken(:\n")

	m, stats, err := run(t, &Config{
		RootDir: root,
		Ignore:  []string{".venv/**", "**/migrations/**"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.FilesDiscovered)
	for _, w := range m.Warnings {
		assert.NotEqual(t, diag.KindParseFailure, w.Kind)
	}
}

func TestAnalyzer_FatalErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()
		_, _, err := run(t, &Config{RootDir: filepath.Join(t.TempDir(), "nope")}, nil)
		assert.ErrorIs(t, err, ErrInvalidRoot)
	})

	t.Run("no source files", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "README.md", "# nothing here\n")
		_, _, err := run(t, &Config{RootDir: root}, nil)
		assert.ErrorIs(t, err, ErrNoSourceFiles)
	})

	t.Run("empty root", func(t *testing.T) {
		t.Parallel()
		_, err := New(&Config{}, nil)
		assert.ErrorIs(t, err, ErrInvalidRoot)
	})

	t.Run("unknown route policy", func(t *testing.T) {
		t.Parallel()
		_, err := New(&Config{RootDir: t.TempDir(), RoutePolicy: "camel"}, nil)
		assert.Error(t, err)
	})
}

func TestAnalyzer_ExtraDiagnostics(t *testing.T) {
	t.Parallel()

	root := writeProject(t)
	m, _, err := run(t, &Config{
		RootDir: root,
		Diagnostics: []diag.Diagnostic{{
			Kind:     diag.KindUnsupported,
			Severity: diag.SeverityWarning,
			Message:  "pdf output is not supported and was skipped",
		}},
	}, nil)
	require.NoError(t, err)

	found := false
	for _, w := range m.Warnings {
		if w.Kind == diag.KindUnsupported {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzer_Cancelled(t *testing.T) {
	t.Parallel()

	root := writeProject(t)
	a, err := New(&Config{RootDir: root}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingReporter struct {
	mu         sync.Mutex
	discovered int
	total      int
	parsed     []string
	symbols    int
	stats      *Stats
	stages     []string
}

func (r *recordingReporter) OnDiscoveryStart() { r.stages = append(r.stages, "discovery") }
func (r *recordingReporter) OnDiscoveryComplete(files int) {
	r.discovered = files
}
func (r *recordingReporter) OnParsingStart(totalFiles int) {
	r.total = totalFiles
	r.stages = append(r.stages, "parsing")
}
func (r *recordingReporter) OnFileParsed(relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsed = append(r.parsed, relPath)
}
func (r *recordingReporter) OnResolutionStart(symbols int) {
	r.symbols = symbols
	r.stages = append(r.stages, "resolution")
}
func (r *recordingReporter) OnComplete(stats *Stats) {
	r.stats = stats
	r.stages = append(r.stages, "complete")
}

func TestAnalyzer_Progress(t *testing.T) {
	t.Parallel()

	root := writeProject(t)
	reporter := &recordingReporter{}
	_, stats, err := run(t, &Config{RootDir: root, Workers: 3}, reporter)
	require.NoError(t, err)

	assert.Equal(t, []string{"discovery", "parsing", "resolution", "complete"}, reporter.stages)
	assert.Equal(t, 9, reporter.discovered)
	assert.Equal(t, 9, reporter.total)
	assert.Len(t, reporter.parsed, 9)
	assert.Contains(t, reporter.parsed, "shop/views.py")
	assert.Equal(t, stats.Symbols, reporter.symbols)
	assert.Same(t, stats, reporter.stats)
}
