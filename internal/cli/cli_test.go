package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mvp-joe/docmint/internal/analyzer"
	"github.com/mvp-joe/docmint/internal/config"
	"github.com/mvp-joe/docmint/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the docmint command:
// - Default run writes API_DOCS.md into the output directory and prints a summary
// - --format all writes four files and reports the skipped PDF as a warning
// - --format pdf, an unknown format, a missing root and an empty project fail
// - --name and --openapi-yaml override configuration
// - Flags win over .docmint/config.yml; the config file still applies otherwise
// - --quiet suppresses progress and the success summary
// - --verbose lists every diagnostic
// - Watch mode regenerates after a source change and stops on cancellation
// - version prints build information
// - formatNumber adds thousands separators
//
// Commands share the process-wide slog default, so these tests run serially.

const viewsSource = `from rest_framework import serializers
from rest_framework.response import Response
from rest_framework.views import APIView


class ItemOut(serializers.Serializer):
    id = serializers.IntegerField(read_only=True)
    name = serializers.CharField()


class ItemView(APIView):
    serializer_class = ItemOut

    def get(self, request):
        return Response([])
`

const urlsSource = `from django.urls import path

from shop.views import ItemView

urlpatterns = [
    path("api/v1/items/", ItemView.as_view()),
]
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"shop/__init__.py": "",
		"shop/views.py":    viewsSource,
		"shop/urls.py":     urlsSource,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

// execute runs the root command with args and captures its output.
func execute(t *testing.T, ctx context.Context, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestGenerate_DefaultMarkdown(t *testing.T) {
	root := writeProject(t)
	outDir := filepath.Join(t.TempDir(), "docs")

	stdout, stderr, err := execute(t, context.Background(), root, "-o", outDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, render.MarkdownFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# "+filepath.Base(root)+" API Documentation")
	assert.Contains(t, string(data), "/api/v1/items/")

	assert.Contains(t, stdout, "✓ Documented 1 endpoints and 1 schemas from 3 files")
	assert.Contains(t, stdout, filepath.Join(outDir, render.MarkdownFile))
	assert.Contains(t, stderr, "Found 3 source files")
}

func TestGenerate_AllFormats(t *testing.T) {
	root := writeProject(t)
	outDir := t.TempDir()

	stdout, _, err := execute(t, context.Background(), root, "-o", outDir, "-f", "all", "-q")
	require.NoError(t, err)

	for _, name := range []string{render.MarkdownFile, render.HTMLFile, render.OpenAPIJSONFile, render.PostmanFile} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
	assert.NoFileExists(t, filepath.Join(outDir, render.OpenAPIYAMLFile))

	var doc map[string]any
	data, err := os.ReadFile(filepath.Join(outDir, render.OpenAPIJSONFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	assert.Contains(t, stdout, "warnings:")
	assert.Contains(t, stdout, "unsupported")
}

func TestGenerate_FlagOverrides(t *testing.T) {
	root := writeProject(t)
	outDir := t.TempDir()

	_, _, err := execute(t, context.Background(), root,
		"-o", outDir, "-f", "openapi", "--openapi-yaml", "-n", "Shop", "-q")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, render.OpenAPIYAMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Shop API")
	assert.NoFileExists(t, filepath.Join(outDir, render.OpenAPIJSONFile))
}

func TestGenerate_ConfigFileAndFlagPrecedence(t *testing.T) {
	root := writeProject(t)
	outDir := t.TempDir()
	cfgDir := filepath.Join(root, config.DirName)
	require.NoError(t, os.MkdirAll(cfgDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yml"), []byte(`
output:
  format: postman
  dir: `+outDir+`
  project_name: Configured
`), 0644))

	_, _, err := execute(t, context.Background(), root, "-q")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outDir, render.PostmanFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Configured API"`)

	// The flag beats the configured format; the configured dir still applies
	_, _, err = execute(t, context.Background(), root, "-q", "-f", "html")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, render.HTMLFile))
}

func TestGenerate_ExplicitConfigFlag(t *testing.T) {
	root := writeProject(t)
	outDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "docmint.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  format: html\n  dir: "+outDir+"\n"), 0644))

	_, _, err := execute(t, context.Background(), root, "-q", "--config", cfgPath)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, render.HTMLFile))
}

func TestGenerate_FatalErrors(t *testing.T) {
	root := writeProject(t)

	t.Run("pdf", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), root, "-o", t.TempDir(), "-f", "pdf", "-q")
		assert.ErrorIs(t, err, render.ErrUnsupportedFormat)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), root, "-o", t.TempDir(), "-f", "docx", "-q")
		assert.ErrorIs(t, err, config.ErrInvalidFormat)
	})

	t.Run("missing root", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), filepath.Join(root, "missing"), "-q")
		assert.ErrorIs(t, err, analyzer.ErrInvalidRoot)
	})

	t.Run("root is a file", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), filepath.Join(root, "shop", "views.py"), "-q")
		assert.ErrorIs(t, err, analyzer.ErrInvalidRoot)
	})

	t.Run("no source files", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), t.TempDir(), "-o", t.TempDir(), "-q")
		assert.ErrorIs(t, err, analyzer.ErrNoSourceFiles)
	})

	t.Run("too many arguments", func(t *testing.T) {
		_, _, err := execute(t, context.Background(), root, root)
		assert.Error(t, err)
	})
}

func TestGenerate_QuietAndVerbose(t *testing.T) {
	root := writeProject(t)
	path := filepath.Join(root, "shop", "broken.py")
	require.NoError(t, os.WriteFile(path, []byte("def broken(:\n"), 0644))

	stdout, stderr, err := execute(t, context.Background(), root, "-o", t.TempDir(), "-q")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "✓")
	assert.NotContains(t, stderr, "Parsing files")
	assert.Contains(t, stdout, "parse-failure")

	stdout, _, err = execute(t, context.Background(), root, "-o", t.TempDir(), "-v")
	require.NoError(t, err)
	assert.Contains(t, stdout, "shop/broken.py:1: [parse-failure]")
}

func TestGenerate_WatchRegenerates(t *testing.T) {
	root := writeProject(t)
	outDir := t.TempDir()
	docs := filepath.Join(outDir, render.MarkdownFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := execute(t, ctx, root, "-o", outDir, "-q", "-w")
		done <- err
	}()

	// Initial run
	require.Eventually(t, func() bool {
		_, err := os.Stat(docs)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	// Let the watcher register before changing sources
	time.Sleep(200 * time.Millisecond)

	updated := strings.Replace(viewsSource, "class ItemView(APIView):", `class ItemView(APIView):
    """Lists every item in the shop."""`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(root, "shop", "views.py"), []byte(updated), 0644))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(docs)
		return err == nil && strings.Contains(string(data), "Lists every item in the shop.")
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch mode did not stop after cancellation")
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "docmint "+Version)
	assert.Contains(t, stdout, "Git commit: "+GitCommit)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "-12,345", formatNumber(-12345))
}
