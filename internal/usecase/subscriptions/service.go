package subscriptions

import (
	"context"
	"fmt"

	"news-portal/internal/domain"
)

// Service управляет членством публикаций в рубриках и подписками.
type Service struct {
	repo domain.SubscriptionRepo
}

// NewService создаёт реестр подписок.
func NewService(repo domain.SubscriptionRepo) *Service {
	return &Service{repo: repo}
}

// LinkPostToCategory связывает публикацию с рубрикой.
// Возвращает true, если связка создана впервые.
func (s *Service) LinkPostToCategory(ctx context.Context, postID, categoryID int64) (bool, error) {
	created, err := s.repo.LinkPostToCategory(ctx, postID, categoryID)
	if err != nil {
		return false, fmt.Errorf("связка публикации с рубрикой: %w", err)
	}
	return created, nil
}

// SubscribeImmediate добавляет прямого подписчика рубрики.
func (s *Service) SubscribeImmediate(ctx context.Context, userID, categoryID int64) error {
	return s.repo.SubscribeImmediate(ctx, userID, categoryID)
}

// UnsubscribeImmediate убирает прямого подписчика рубрики.
func (s *Service) UnsubscribeImmediate(ctx context.Context, userID, categoryID int64) error {
	return s.repo.UnsubscribeImmediate(ctx, userID, categoryID)
}

// SubscribeToDigest включает рубрику в еженедельную подписку пользователя.
func (s *Service) SubscribeToDigest(ctx context.Context, userID, categoryID int64) error {
	if err := s.repo.SubscribeDigest(ctx, userID, categoryID); err != nil {
		return fmt.Errorf("подписка на рассылку: %w", err)
	}
	return nil
}

// UnsubscribeFromDigest исключает рубрику из подписки пользователя.
func (s *Service) UnsubscribeFromDigest(ctx context.Context, userID, categoryID int64) error {
	if err := s.repo.UnsubscribeDigest(ctx, userID, categoryID); err != nil {
		return fmt.Errorf("отписка от рассылки: %w", err)
	}
	return nil
}

// ResolveImmediateRecipients возвращает прямых подписчиков рубрики.
func (s *Service) ResolveImmediateRecipients(ctx context.Context, categoryID int64) ([]domain.User, error) {
	return s.repo.ListImmediateSubscribers(ctx, categoryID)
}

// ResolveDigestRecipients возвращает действующих подписчиков рассылки
// с непустым набором рубрик.
func (s *Service) ResolveDigestRecipients(ctx context.Context) ([]domain.Subscriber, error) {
	return s.repo.ListActiveDigestSubscribers(ctx)
}
