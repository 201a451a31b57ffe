package rating

import (
	"context"
	"fmt"

	"news-portal/internal/domain"
)

const postRatingWeight = 3

// Service пересчитывает рейтинг автора целиком по текущему состоянию
// публикаций и комментариев. Инкрементального состояния нет: повторный
// вызов без новых записей возвращает то же значение.
type Service struct {
	authors domain.AuthorRepo
}

// NewService создаёт агрегатор рейтинга.
func NewService(authors domain.AuthorRepo) *Service {
	return &Service{authors: authors}
}

// RecomputeAuthorRating пересчитывает и сохраняет рейтинг автора.
// Для разных авторов вызовы независимы; для одного автора при гонке
// побеждает последняя запись, следующий пересчёт её выравнивает.
func (s *Service) RecomputeAuthorRating(ctx context.Context, authorID int64) (int, error) {
	comps, err := s.authors.RatingComponents(ctx, authorID)
	if err != nil {
		return 0, fmt.Errorf("получение слагаемых: %w", err)
	}
	rating := postRatingWeight*comps.PostRatingSum + comps.OwnCommentRatingSum + comps.OthersCommentRatingSum
	if err := s.authors.UpdateAuthorRating(ctx, authorID, rating); err != nil {
		return 0, fmt.Errorf("сохранение рейтинга: %w", err)
	}
	return rating, nil
}
