// Package render produces the human-readable artifact for a document
// snapshot. The workflow core only depends on the Renderer contract;
// rendering failures never roll back a committed transition because
// dispatch happens after the transaction.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"sync"
)

// Renderer turns a content snapshot into an opaque rendered artifact
// (HTML here; callers treat it as bytes).
type Renderer interface {
	Render(ctx context.Context, snapshot json.RawMessage, templateID string) ([]byte, error)
}

// TemplateSource loads raw template text by ID. Implementations may
// read from disk, a table, or an embedded default set.
type TemplateSource interface {
	Load(ctx context.Context, templateID string) (string, error)
}

// HTMLRenderer renders snapshots through html/template. The compiled
// template cache is owned by this object and scoped to it — nothing
// here is process-global, so two renderers never share state.
type HTMLRenderer struct {
	source TemplateSource

	mu    sync.RWMutex
	cache map[string]*template.Template
}

func NewHTMLRenderer(source TemplateSource) *HTMLRenderer {
	return &HTMLRenderer{source: source, cache: map[string]*template.Template{}}
}

// Render executes the template for templateID against the decoded
// snapshot. Templates see the field map as .Fields plus a stable
// .FieldList for layouts that iterate.
func (r *HTMLRenderer) Render(ctx context.Context, snapshot json.RawMessage, templateID string) ([]byte, error) {
	tpl, err := r.lookup(ctx, templateID)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &fields); err != nil {
			return nil, fmt.Errorf("render: bad snapshot: %w", err)
		}
	}
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	data := map[string]any{"Fields": fields, "FieldList": names}
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render: execute %q: %w", templateID, err)
	}
	return buf.Bytes(), nil
}

func (r *HTMLRenderer) lookup(ctx context.Context, templateID string) (*template.Template, error) {
	r.mu.RLock()
	tpl, ok := r.cache[templateID]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	text, err := r.source.Load(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("render: load template %q: %w", templateID, err)
	}
	tpl, err = template.New(templateID).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("render: parse template %q: %w", templateID, err)
	}

	r.mu.Lock()
	r.cache[templateID] = tpl
	r.mu.Unlock()
	return tpl, nil
}

// StaticSource serves templates from an in-memory map; the default
// NDA layout ships under the "default" ID. Good enough for tests and
// single-template deployments.
type StaticSource map[string]string

func (s StaticSource) Load(_ context.Context, templateID string) (string, error) {
	if text, ok := s[templateID]; ok {
		return text, nil
	}
	return "", fmt.Errorf("unknown template %q", templateID)
}

// DefaultTemplates is the built-in template set.
func DefaultTemplates() StaticSource {
	return StaticSource{"default": defaultNDATemplate}
}

const defaultNDATemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Non-Disclosure Agreement</title></head>
<body>
<h1>Non-Disclosure Agreement</h1>
<table>
{{range .FieldList}}<tr><th>{{.}}</th><td>{{index $.Fields .}}</td></tr>
{{end}}</table>
<div class="sign-box" id="party-a-signature"><div class="line"></div></div>
<div class="sign-box" id="party-b-signature"><div class="line"></div></div>
</body>
</html>`
