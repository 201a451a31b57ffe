package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"news-portal/internal/domain"
	"news-portal/internal/infra/metrics"
	"news-portal/internal/usecase/events"
)

// ErrRateLimited возвращается при превышении лимита новостей автора.
var ErrRateLimited = errors.New("превышен лимит новостей за период")

// ErrInvalidPostType возвращается при неизвестном виде публикации.
var ErrInvalidPostType = errors.New("неизвестный вид публикации")

// ErrEmptyTitle возвращается, если заголовок пуст.
var ErrEmptyTitle = errors.New("пустой заголовок")

// Service отвечает за создание публикаций и комментариев.
// Создание новости проходит шлюз допуска: лимит проверяется до любой
// записи, отклонённая попытка не оставляет следов в хранилище.
type Service struct {
	posts      domain.PostRepo
	categories domain.CategoryRepo
	subs       domain.SubscriptionRepo
	bus        *events.Bus

	limitCount  int
	limitWindow time.Duration
	now         func() time.Time
}

// NewService создаёт сервис публикаций.
func NewService(posts domain.PostRepo, categories domain.CategoryRepo, subs domain.SubscriptionRepo, bus *events.Bus, limitCount int, limitWindow time.Duration) *Service {
	return &Service{
		posts:       posts,
		categories:  categories,
		subs:        subs,
		bus:         bus,
		limitCount:  limitCount,
		limitWindow: limitWindow,
		now:         time.Now,
	}
}

// CreatePostInput описывает новую публикацию.
type CreatePostInput struct {
	AuthorID    int64
	Type        domain.PostType
	Title       string
	Content     string
	CategoryIDs []int64
}

// CreatePost создаёт публикацию, связывает её с рубриками и публикует
// событие PostCreated. Событие уходит только после фиксации записей.
func (s *Service) CreatePost(ctx context.Context, input CreatePostInput) (domain.Post, error) {
	if input.Type != domain.PostTypeArticle && input.Type != domain.PostTypeNews {
		return domain.Post{}, ErrInvalidPostType
	}
	if strings.TrimSpace(input.Title) == "" {
		return domain.Post{}, ErrEmptyTitle
	}

	// Рубрики проверяются до шлюза, чтобы отклонение не оставило следов.
	cats := make([]domain.Category, 0, len(input.CategoryIDs))
	for _, id := range input.CategoryIDs {
		category, err := s.categories.GetCategory(ctx, id)
		if err != nil {
			return domain.Post{}, fmt.Errorf("рубрика %d: %w", id, err)
		}
		cats = append(cats, category)
	}

	now := s.now()
	if input.Type == domain.PostTypeNews {
		if err := s.admitNews(ctx, input.AuthorID, now); err != nil {
			return domain.Post{}, err
		}
	}

	post, err := s.posts.CreatePost(ctx, domain.Post{
		AuthorID: input.AuthorID,
		Type:     input.Type,
		Title:    input.Title,
		Content:  input.Content,
	})
	if err != nil {
		return domain.Post{}, fmt.Errorf("создание публикации: %w", err)
	}

	for _, category := range cats {
		if _, err := s.subs.LinkPostToCategory(ctx, post.ID, category.ID); err != nil {
			return domain.Post{}, fmt.Errorf("связка с рубрикой %d: %w", category.ID, err)
		}
	}

	s.bus.Publish(ctx, domain.PostCreated{Post: post, Categories: cats})
	return post, nil
}

// admitNews — шлюз допуска: считает новости автора в скользящем окне
// [now − window, now] и отклоняет попытку при достижении лимита.
func (s *Service) admitNews(ctx context.Context, authorID int64, now time.Time) error {
	count, err := s.posts.CountNewsByAuthorSince(ctx, authorID, now.Add(-s.limitWindow), now)
	if err != nil {
		return fmt.Errorf("проверка лимита: %w", err)
	}
	if count >= s.limitCount {
		metrics.RateLimitRejections.Inc()
		return ErrRateLimited
	}
	return nil
}

// LinkCategory связывает существующую публикацию с рубрикой.
// Событие PostCategoryLinked уходит только для новой связки новости.
func (s *Service) LinkCategory(ctx context.Context, postID, categoryID int64) (bool, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return false, fmt.Errorf("получение публикации: %w", err)
	}
	category, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return false, fmt.Errorf("получение рубрики: %w", err)
	}
	created, err := s.subs.LinkPostToCategory(ctx, postID, categoryID)
	if err != nil {
		return false, fmt.Errorf("связка с рубрикой: %w", err)
	}
	if created && post.Type == domain.PostTypeNews {
		s.bus.Publish(ctx, domain.PostCategoryLinked{Post: post, Category: category})
	}
	return created, nil
}

// LikePost повышает рейтинг публикации.
func (s *Service) LikePost(ctx context.Context, postID int64) (int, error) {
	return s.posts.AdjustPostRating(ctx, postID, 1)
}

// DislikePost понижает рейтинг публикации.
func (s *Service) DislikePost(ctx context.Context, postID int64) (int, error) {
	return s.posts.AdjustPostRating(ctx, postID, -1)
}

// CreateComment добавляет комментарий к публикации.
func (s *Service) CreateComment(ctx context.Context, postID, userID int64, text string) (domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Comment{}, errors.New("пустой комментарий")
	}
	comment, err := s.posts.CreateComment(ctx, domain.Comment{PostID: postID, UserID: userID, Text: text})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("создание комментария: %w", err)
	}
	return comment, nil
}

// LikeComment повышает рейтинг комментария.
func (s *Service) LikeComment(ctx context.Context, commentID int64) (int, error) {
	return s.posts.AdjustCommentRating(ctx, commentID, 1)
}

// DislikeComment понижает рейтинг комментария.
func (s *Service) DislikeComment(ctx context.Context, commentID int64) (int, error) {
	return s.posts.AdjustCommentRating(ctx, commentID, -1)
}

// ListNews возвращает новости, новые первыми.
func (s *Service) ListNews(ctx context.Context, limit int) ([]domain.Post, error) {
	return s.posts.ListNews(ctx, limit)
}

// GetNews возвращает одну новость.
func (s *Service) GetNews(ctx context.Context, id int64) (domain.Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if post.Type != domain.PostTypeNews {
		return domain.Post{}, fmt.Errorf("публикация %d: %w", id, ErrInvalidPostType)
	}
	return post, nil
}
