package render

import (
	"strings"
	"testing"
	"time"

	"news-portal/internal/domain"
)

func TestRenderNewPostContainsPreviewAndLink(t *testing.T) {
	templates, err := NewTemplates()
	if err != nil {
		t.Fatalf("не удалось распарсить шаблоны: %v", err)
	}

	post := domain.Post{ID: 5, Title: "Заголовок", Content: strings.Repeat("ж", 200)}
	body, err := templates.Render(TemplateNewPost, map[string]any{
		"Post":     post,
		"SiteName": "NewsPortal",
		"SiteURL":  "http://example.com",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(body, "Заголовок") {
		t.Fatalf("в письме нет заголовка: %s", body)
	}
	if !strings.Contains(body, post.Preview()) {
		t.Fatalf("в письме нет превью публикации")
	}
	if !strings.Contains(body, "http://example.com/news/5") {
		t.Fatalf("в письме нет ссылки на публикацию: %s", body)
	}
}

func TestRenderWeeklyDigestListsPosts(t *testing.T) {
	templates, err := NewTemplates()
	if err != nil {
		t.Fatalf("не удалось распарсить шаблоны: %v", err)
	}

	from := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	body, err := templates.Render(TemplateWeeklyDigest, map[string]any{
		"Username":    "ivan",
		"Posts":       []domain.Post{{ID: 5, Title: "Первая"}, {ID: 6, Title: "Вторая"}},
		"SiteName":    "NewsPortal",
		"SiteURL":     "http://example.com",
		"PeriodStart": from,
		"PeriodEnd":   from.AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, want := range []string{"Первая", "Вторая", "25.08.2025", "01.09.2025"} {
		if !strings.Contains(body, want) {
			t.Fatalf("в подборке нет %q: %s", want, body)
		}
	}
}

func TestRenderWelcomeGreetsUser(t *testing.T) {
	templates, err := NewTemplates()
	if err != nil {
		t.Fatalf("не удалось распарсить шаблоны: %v", err)
	}

	body, err := templates.Render(TemplateWelcome, map[string]any{
		"Username": "ivan",
		"SiteName": "NewsPortal",
		"SiteURL":  "http://example.com",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(body, "ivan") || !strings.Contains(body, "NewsPortal") {
		t.Fatalf("приветствие без имени или названия: %s", body)
	}
}
