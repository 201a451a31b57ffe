package digest

import (
	"fmt"
	"time"

	"news-portal/internal/adapters/render"
	"news-portal/internal/domain"
)

const digestTemplate = render.TemplateWeeklyDigest

// digestSubject строит тему письма рассылки.
func digestSubject(siteName string) string {
	return fmt.Sprintf("Еженедельная подборка новостей от %s", siteName)
}

// digestContext собирает данные для шаблона письма.
func digestContext(subscriber domain.Subscriber, posts []domain.Post, site Site, periodStart, periodEnd time.Time) map[string]any {
	return map[string]any{
		"Username":    subscriber.Username,
		"Posts":       posts,
		"SiteName":    site.Name,
		"SiteURL":     site.URL,
		"PeriodStart": periodStart,
		"PeriodEnd":   periodEnd,
	}
}
