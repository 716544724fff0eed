// Package render turns the endpoint model into documentation files:
// Markdown, HTML, an OpenAPI document and a Postman collection.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
)

// Format names an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatOpenAPI  Format = "openapi"
	FormatPostman  Format = "postman"
	FormatAll      Format = "all"
)

// Formats lists every accepted format name.
var Formats = []Format{FormatMarkdown, FormatHTML, FormatPDF, FormatOpenAPI, FormatPostman, FormatAll}

var (
	// ErrUnknownFormat is returned for a format name outside Formats.
	ErrUnknownFormat = errors.New("unknown output format")

	// ErrUnsupportedFormat is returned for a known format this build cannot render.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// ParseFormat matches a format name case-insensitively. "md" is accepted
// for markdown.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "md" {
		return FormatMarkdown, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownFormat, name, formatList())
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Expand resolves a requested format to the concrete formats to render.
// "all" skips PDF and reports it as a diagnostic; PDF alone is an error.
func Expand(f Format) ([]Format, []diag.Diagnostic, error) {
	switch f {
	case FormatAll:
		return []Format{FormatMarkdown, FormatHTML, FormatOpenAPI, FormatPostman}, []diag.Diagnostic{{
			Kind:     diag.KindUnsupported,
			Severity: diag.SeverityWarning,
			Message:  "pdf output is not supported and was skipped",
		}}, nil
	case FormatPDF:
		return nil, nil, fmt.Errorf("%w: pdf", ErrUnsupportedFormat)
	case FormatMarkdown, FormatHTML, FormatOpenAPI, FormatPostman:
		return []Format{f}, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Options configures every renderer.
type Options struct {
	OpenAPIYAML bool      // Write openapi.yaml instead of openapi.json
	BaseURL     string    // Postman base_url variable
	Version     string    // API version reported in the OpenAPI info block
	GeneratedAt time.Time // Zero means time.Now()
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:8000"
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	if o.GeneratedAt.IsZero() {
		o.GeneratedAt = time.Now()
	}
	return o
}

// Renderer writes one output format.
type Renderer interface {
	Format() Format
	FileName() string
	Render(w io.Writer, m *model.Model) error
}

// New returns the renderer for a concrete format.
func New(f Format, opts Options) (Renderer, error) {
	opts = opts.withDefaults()
	switch f {
	case FormatMarkdown:
		return &markdownRenderer{opts: opts}, nil
	case FormatHTML:
		return &htmlRenderer{opts: opts}, nil
	case FormatOpenAPI:
		return &openAPIRenderer{opts: opts}, nil
	case FormatPostman:
		return &postmanRenderer{opts: opts}, nil
	case FormatPDF:
		return nil, fmt.Errorf("%w: pdf", ErrUnsupportedFormat)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// WriteAll renders each format into dir and returns the written paths.
// Each file is rendered in memory first so a failing renderer leaves no
// partial file behind.
func WriteAll(dir string, formats []Format, m *model.Model, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	opts = opts.withDefaults()
	var written []string
	for _, f := range formats {
		r, err := New(f, opts)
		if err != nil {
			return written, err
		}

		var buf bytes.Buffer
		if err := r.Render(&buf, m); err != nil {
			return written, fmt.Errorf("failed to render %s: %w", f, err)
		}

		path := filepath.Join(dir, r.FileName())
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
