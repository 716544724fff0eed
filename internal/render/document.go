package render

import (
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/mvp-joe/docmint/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Output file names.
const (
	MarkdownFile    = "API_DOCS.md"
	HTMLFile        = "API_DOCS.html"
	OpenAPIJSONFile = "openapi.json"
	OpenAPIYAMLFile = "openapi.yaml"
	PostmanFile     = "postman_collection.json"
)

var (
	markdownTemplate = template.Must(template.New("api_docs.md.tmpl").Funcs(template.FuncMap{
		"cell":       markdownCell,
		"schemaCell": schemaCell,
		"props":      markdownProps,
		"location":   location,
	}).ParseFS(templateFS, "templates/api_docs.md.tmpl"))

	htmlTemplate = htmltemplate.Must(htmltemplate.New("api_docs.html.tmpl").Funcs(htmltemplate.FuncMap{
		"lower":    strings.ToLower,
		"location": location,
	}).ParseFS(templateFS, "templates/api_docs.html.tmpl"))
)

type markdownRenderer struct {
	opts Options
}

func (r *markdownRenderer) Format() Format   { return FormatMarkdown }
func (r *markdownRenderer) FileName() string { return MarkdownFile }

func (r *markdownRenderer) Render(w io.Writer, m *model.Model) error {
	if err := markdownTemplate.Execute(w, buildView(m, r.opts)); err != nil {
		return fmt.Errorf("failed to execute markdown template: %w", err)
	}
	return nil
}

type htmlRenderer struct {
	opts Options
}

func (r *htmlRenderer) Format() Format   { return FormatHTML }
func (r *htmlRenderer) FileName() string { return HTMLFile }

func (r *htmlRenderer) Render(w io.Writer, m *model.Model) error {
	if err := htmlTemplate.Execute(w, buildView(m, r.opts)); err != nil {
		return fmt.Errorf("failed to execute html template: %w", err)
	}
	return nil
}

// markdownCell keeps text inside one table cell.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func schemaCell(s *schemaView) string {
	if s == nil {
		return "-"
	}
	return "`" + markdownCell(s.Title) + "`"
}

func markdownProps(props []string) string {
	quoted := make([]string, len(props))
	for i, p := range props {
		quoted[i] = "`" + p + "`"
	}
	return strings.Join(quoted, ", ")
}

// location renders "file:line" or "-".
func location(d diag.Diagnostic) string {
	switch {
	case d.File == "":
		return "-"
	case d.Line > 0:
		return fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	return d.File
}
