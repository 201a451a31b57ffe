package subscriptions

import (
	"context"
	"testing"
	"time"

	"news-portal/internal/domain"
)

type stubSubsRepo struct {
	links map[[2]int64]bool
}

func (s *stubSubsRepo) LinkPostToCategory(_ context.Context, postID, categoryID int64) (bool, error) {
	if s.links == nil {
		s.links = make(map[[2]int64]bool)
	}
	key := [2]int64{postID, categoryID}
	if s.links[key] {
		return false, nil
	}
	s.links[key] = true
	return true, nil
}
func (s *stubSubsRepo) SubscribeImmediate(context.Context, int64, int64) error   { return nil }
func (s *stubSubsRepo) UnsubscribeImmediate(context.Context, int64, int64) error { return nil }
func (s *stubSubsRepo) ListImmediateSubscribers(context.Context, int64) ([]domain.User, error) {
	return nil, nil
}
func (s *stubSubsRepo) SubscribeDigest(context.Context, int64, int64) error   { return nil }
func (s *stubSubsRepo) UnsubscribeDigest(context.Context, int64, int64) error { return nil }
func (s *stubSubsRepo) ListActiveDigestSubscribers(context.Context) ([]domain.Subscriber, error) {
	return nil, nil
}
func (s *stubSubsRepo) ListNewsForCategories(context.Context, []int64, time.Time, time.Time) ([]domain.Post, error) {
	return nil, nil
}
func (s *stubSubsRepo) AdvanceDigestWatermark(context.Context, int64, time.Time) error { return nil }

func TestLinkPostToCategoryIdempotent(t *testing.T) {
	service := NewService(&stubSubsRepo{})

	created, err := service.LinkPostToCategory(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !created {
		t.Fatalf("первая связка должна быть создана")
	}

	created, err = service.LinkPostToCategory(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("повторная связка не должна быть ошибкой: %v", err)
	}
	if created {
		t.Fatalf("повторная связка не считается созданной")
	}
}
