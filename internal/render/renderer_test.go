package render

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLRendererRendersFields(t *testing.T) {
	r := NewHTMLRenderer(DefaultTemplates())
	out, err := r.Render(context.Background(),
		json.RawMessage(`{"party_a":"Acme Corp","party_b":"Globex"}`), "default")
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "Acme Corp")
	assert.Contains(t, html, "Globex")
	assert.Contains(t, html, "party-a-signature")
}

func TestHTMLRendererEscapesContent(t *testing.T) {
	r := NewHTMLRenderer(DefaultTemplates())
	out, err := r.Render(context.Background(),
		json.RawMessage(`{"party_a":"<script>alert(1)</script>"}`), "default")
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>alert(1)</script>")
}

func TestHTMLRendererUnknownTemplate(t *testing.T) {
	r := NewHTMLRenderer(DefaultTemplates())
	_, err := r.Render(context.Background(), json.RawMessage(`{}`), "missing")
	assert.Error(t, err)
}

func TestHTMLRendererCachesCompiledTemplates(t *testing.T) {
	src := &countingSource{text: "<p>{{index .Fields \"x\"}}</p>"}
	r := NewHTMLRenderer(src)
	for i := 0; i < 3; i++ {
		_, err := r.Render(context.Background(), json.RawMessage(`{"x":"y"}`), "tpl")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.loads)
}

// Two renderers never share compiled state.
func TestHTMLRendererCacheIsScopedPerRenderer(t *testing.T) {
	src := &countingSource{text: "<p>ok</p>"}
	a := NewHTMLRenderer(src)
	b := NewHTMLRenderer(src)
	_, err := a.Render(context.Background(), json.RawMessage(`{}`), "tpl")
	require.NoError(t, err)
	_, err = b.Render(context.Background(), json.RawMessage(`{}`), "tpl")
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)
}

type countingSource struct {
	text  string
	loads int
}

func (s *countingSource) Load(_ context.Context, id string) (string, error) {
	s.loads++
	if strings.Contains(id, "missing") {
		return "", assert.AnError
	}
	return s.text, nil
}
