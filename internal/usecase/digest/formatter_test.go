package digest

import (
	"testing"
	"time"

	"news-portal/internal/domain"
)

func TestDigestSubjectMentionsSite(t *testing.T) {
	subject := digestSubject("NewsPortal")
	want := "Еженедельная подборка новостей от NewsPortal"
	if subject != want {
		t.Fatalf("ожидали %q, получили %q", want, subject)
	}
}

func TestDigestContextCarriesPeriod(t *testing.T) {
	from := time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	subscriber := domain.Subscriber{ID: 1, Username: "ivan"}
	posts := []domain.Post{{ID: 5, Title: "новость"}}

	data := digestContext(subscriber, posts, Site{Name: "NewsPortal", URL: "http://example.com"}, from, to)
	if data["Username"] != "ivan" {
		t.Fatalf("ожидали имя подписчика, получили %v", data["Username"])
	}
	if got := data["Posts"].([]domain.Post); len(got) != 1 || got[0].ID != 5 {
		t.Fatalf("ожидали публикации подборки, получили %v", got)
	}
	if data["PeriodStart"] != from || data["PeriodEnd"] != to {
		t.Fatalf("период подборки потерян: %v — %v", data["PeriodStart"], data["PeriodEnd"])
	}
}
