package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/mvp-joe/docmint/internal/model"
)

// PostmanSchema is the collection format version written.
const PostmanSchema = "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"

// postmanNamespace seeds name-based ids so regenerating a collection keeps
// request ids stable.
var postmanNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://docmint.dev/postman"))

// Collection is a Postman v2.1 collection.
type Collection struct {
	Info     CollectionInfo `json:"info"`
	Item     []*Item        `json:"item"`
	Variable []Variable     `json:"variable"`
}

type CollectionInfo struct {
	ID          string `json:"_postman_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema"`
}

// Item is either a folder (Item set) or a request (Request set).
type Item struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Item     []*Item  `json:"item,omitempty"`
	Request  *Request `json:"request,omitempty"`
	Response []any    `json:"response,omitempty"`
}

type Request struct {
	Method      string     `json:"method"`
	Header      []Variable `json:"header"`
	Body        *Body      `json:"body,omitempty"`
	URL         URL        `json:"url"`
	Description string     `json:"description,omitempty"`
}

type Body struct {
	Mode    string      `json:"mode"`
	Raw     string      `json:"raw"`
	Options BodyOptions `json:"options"`
}

type BodyOptions struct {
	Raw struct {
		Language string `json:"language"`
	} `json:"raw"`
}

type URL struct {
	Raw      string     `json:"raw"`
	Host     []string   `json:"host"`
	Path     []string   `json:"path"`
	Query    []Variable `json:"query,omitempty"`
	Variable []Variable `json:"variable,omitempty"`
}

// Variable is a key/value pair used for headers, query parameters, path
// variables and collection variables.
type Variable struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

type postmanRenderer struct {
	opts Options
}

func (r *postmanRenderer) Format() Format   { return FormatPostman }
func (r *postmanRenderer) FileName() string { return PostmanFile }

func (r *postmanRenderer) Render(w io.Writer, m *model.Model) error {
	data, err := json.MarshalIndent(BuildCollection(m, r.opts), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal postman collection: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// BuildCollection groups requests into version and resource folders.
func BuildCollection(m *model.Model, opts Options) *Collection {
	opts = opts.withDefaults()
	title := projectTitle(m)

	c := &Collection{
		Info: CollectionInfo{
			ID:     stableID(title),
			Name:   title + " API",
			Schema: PostmanSchema,
		},
		Item:     []*Item{},
		Variable: []Variable{{Key: "base_url", Value: opts.BaseURL, Type: "string"}},
	}

	view := buildView(m, opts)
	for _, v := range view.Versions {
		versionFolder := &Item{ID: stableID(title, v.Name), Name: v.Name}
		for _, res := range v.Resources {
			resourceFolder := &Item{ID: stableID(title, v.Name, res.Name), Name: res.Name}
			for _, op := range res.Operations {
				for _, b := range op.endpoint.Bindings() {
					resourceFolder.Item = append(resourceFolder.Item, requestItem(m, op.endpoint, b))
				}
			}
			versionFolder.Item = append(versionFolder.Item, resourceFolder)
		}
		c.Item = append(c.Item, versionFolder)
	}
	return c
}

func requestItem(m *model.Model, e *model.Endpoint, b *model.MethodBinding) *Item {
	// Postman marks path variables as :name
	path := pathParam.ReplaceAllString(e.Path, ":$1")

	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	url := URL{
		Raw:  "{{base_url}}" + path,
		Host: []string{"{{base_url}}"},
		Path: segments,
	}
	for _, match := range pathParam.FindAllStringSubmatch(e.Path, -1) {
		url.Variable = append(url.Variable, Variable{Key: match[1], Description: "Path variable"})
	}
	var query []string
	for _, q := range b.QueryParameters {
		url.Query = append(url.Query, Variable{Key: q.Name, Description: queryDescription(q)})
		query = append(query, q.Name+"=")
	}
	if len(query) > 0 {
		url.Raw += "?" + strings.Join(query, "&")
	}

	req := &Request{
		Method:      string(b.Method),
		Header:      []Variable{{Key: "Content-Type", Value: "application/json", Type: "text"}},
		URL:         url,
		Description: strings.TrimSpace(e.Description),
	}
	if s, ok := m.Schema(b.Request); ok {
		data, err := json.MarshalIndent(exampleOf(m, s, map[string]bool{}), "", "  ")
		if err == nil {
			body := &Body{Mode: "raw", Raw: string(data)}
			body.Options.Raw.Language = "json"
			req.Body = body
		}
	}

	return &Item{
		ID:       stableID(e.Name, string(b.Method)),
		Name:     string(b.Method) + " " + e.Path,
		Request:  req,
		Response: []any{},
	}
}

func queryDescription(q model.QueryParameter) string {
	desc := q.Type + " query parameter"
	if q.Required {
		desc = "Required " + desc
	}
	if q.Description != "" {
		desc += ". " + q.Description
	}
	return desc
}

func stableID(parts ...string) string {
	return uuid.NewSHA1(postmanNamespace, []byte(strings.Join(parts, "\x00"))).String()
}
