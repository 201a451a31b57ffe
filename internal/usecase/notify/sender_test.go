package notify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

func TestDeliverContinuesAfterRecipientFailure(t *testing.T) {
	users := &stubUserRepo{users: map[int64]domain.User{
		2: {ID: 2, Email: "ivan@example.com", Username: "ivan"},
		3: {ID: 3, Email: "olga@example.com", Username: "olga"},
	}}
	posts := &stubPostsRepo{posts: map[int64]domain.Post{
		5: {ID: 5, Type: domain.PostTypeNews, Title: "новость"},
	}}
	mail := &stubMailer{failFor: map[string]bool{"ivan@example.com": true}}
	sender := NewSender(users, posts, stubRenderer{}, mail, SiteInfo{Name: "NewsPortal"}, zerolog.Nop())

	summary := sender.Deliver(context.Background(), domain.NotificationJob{
		ID:           "job-1",
		Kind:         domain.NotificationNewPost,
		PostID:       5,
		RecipientIDs: []int64{2, 3},
		RequestedAt:  time.Now(),
	})
	if summary.Sent != 1 {
		t.Fatalf("ожидали 1 отправленное, получили %d", summary.Sent)
	}
	if summary.Failed != 1 {
		t.Fatalf("ожидали 1 сбой, получили %d", summary.Failed)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "olga@example.com" {
		t.Fatalf("ожидали доставку olga@example.com, получили %v", mail.sent)
	}
}

func TestDeliverFailsWholeJobWhenPostMissing(t *testing.T) {
	users := &stubUserRepo{users: map[int64]domain.User{
		2: {ID: 2, Email: "ivan@example.com"},
	}}
	mail := &stubMailer{}
	sender := NewSender(users, &stubPostsRepo{}, stubRenderer{}, mail, SiteInfo{}, zerolog.Nop())

	summary := sender.Deliver(context.Background(), domain.NotificationJob{
		ID:           "job-2",
		Kind:         domain.NotificationNewPost,
		PostID:       404,
		RecipientIDs: []int64{2},
	})
	if summary.Sent != 0 || summary.Failed != 1 {
		t.Fatalf("ожидали 0/1, получили %d/%d", summary.Sent, summary.Failed)
	}
	if len(mail.sent) != 0 {
		t.Fatalf("письма не должны отправляться без публикации")
	}
}
