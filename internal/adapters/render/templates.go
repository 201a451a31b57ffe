package render

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"news-portal/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Шаблоны писем.
const (
	TemplateWelcome      = "welcome.html"
	TemplateNewPost      = "new_post.html"
	TemplateWeeklyDigest = "weekly_digest.html"
)

// Templates реализует domain.Renderer на html/template.
type Templates struct {
	t *template.Template
}

// NewTemplates парсит встроенные шаблоны писем.
func NewTemplates() (*Templates, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("парсинг шаблонов: %w", err)
	}
	return &Templates{t: t}, nil
}

var _ domain.Renderer = (*Templates)(nil)

// Render строит тело письма по имени шаблона.
func (r *Templates) Render(name string, data any) (string, error) {
	var b strings.Builder
	if err := r.t.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("рендеринг %s: %w", name, err)
	}
	return b.String(), nil
}
