// Package prompt loads the system prompt templates sent to the model and
// composes the effective system prompt for a conversation.
//
// Templates are YAML documents with a name, a version and a text/template
// body. The built-in set is embedded; a directory can override it.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Built-in template names.
const (
	SupportAgent = "support_agent"
	Summary      = "summary"
	Extraction   = "extraction"
	Language     = "language"
	RAGContext   = "rag_context"
)

//go:embed templates/*.yaml
var builtin embed.FS

// Template is a named, versioned prompt body.
type Template struct {
	Name        string `yaml:"name"`
	Version     int    `yaml:"version"`
	Description string `yaml:"description"`
	Body        string `yaml:"template"`

	tmpl *template.Template
}

// Registry holds parsed templates by name.
type Registry struct {
	templates map[string]*Template
}

// Default returns the registry for the embedded templates.
func Default() (*Registry, error) {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return NewRegistry(sub)
}

// MustDefault is like Default but panics on error.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry parses every *.yaml file at the root of fsys.
// The language and rag_context templates are required.
func NewRegistry(fsys fs.FS) (*Registry, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	r := &Registry{templates: make(map[string]*Template, len(files))}
	for _, file := range files {
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", file, err)
		}
		t, err := parseTemplate(file, raw)
		if err != nil {
			return nil, err
		}
		if _, dup := r.templates[t.Name]; dup {
			return nil, fmt.Errorf("template %q: duplicate name %q", file, t.Name)
		}
		r.templates[t.Name] = t
	}

	for _, required := range []string{Language, RAGContext} {
		if _, ok := r.templates[required]; !ok {
			return nil, fmt.Errorf("template %q is required", required)
		}
	}
	return r, nil
}

func parseTemplate(file string, raw []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("template %q: parse yaml: %w", file, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(path.Base(file), path.Ext(file))
	}
	if strings.TrimSpace(t.Body) == "" {
		return nil, fmt.Errorf("template %q: empty body", t.Name)
	}

	// missingkey=error makes a typo in a template fail instead of rendering
	// "<no value>" into the prompt.
	tmpl, err := template.New(t.Name).Option("missingkey=error").Parse(t.Body)
	if err != nil {
		return nil, fmt.Errorf("template %q: parse: %w", t.Name, err)
	}
	t.tmpl = tmpl
	return &t, nil
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named template.
func (r *Registry) Get(name string) (*Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Render executes the named template with data.
func (r *Registry) Render(name string, data any) (string, error) {
	t, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template %q: render: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Text renders a template that takes no variables.
func (r *Registry) Text(name string) (string, error) {
	return r.Render(name, nil)
}
