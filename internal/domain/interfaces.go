package domain

import (
	"context"
	"time"
)

// UserRepo управляет пользователями и авторскими профилями.
type UserRepo interface {
	CreateUser(ctx context.Context, email, username string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]User, error)
	EnsureAuthor(ctx context.Context, userID int64) (Author, error)
}

// AuthorRepo отдаёт слагаемые рейтинга и сохраняет пересчитанное значение.
type AuthorRepo interface {
	GetAuthor(ctx context.Context, id int64) (Author, error)
	RatingComponents(ctx context.Context, authorID int64) (RatingComponents, error)
	UpdateAuthorRating(ctx context.Context, authorID int64, rating int) error
}

// CategoryRepo управляет рубриками.
type CategoryRepo interface {
	CreateCategory(ctx context.Context, name string) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// PostRepo управляет публикациями и комментариями.
type PostRepo interface {
	CreatePost(ctx context.Context, post Post) (Post, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	ListNews(ctx context.Context, limit int) ([]Post, error)
	CountNewsByAuthorSince(ctx context.Context, authorID int64, since, until time.Time) (int, error)
	AdjustPostRating(ctx context.Context, postID int64, delta int) (int, error)
	ListPostCategories(ctx context.Context, postID int64) ([]Category, error)
	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	AdjustCommentRating(ctx context.Context, commentID int64, delta int) (int, error)
}

// SubscriptionRepo управляет членством в рубриках и подписками на рассылку.
type SubscriptionRepo interface {
	// LinkPostToCategory создаёт связку публикации и рубрики.
	// Повторная связка — no-op: возвращает created=false без ошибки.
	LinkPostToCategory(ctx context.Context, postID, categoryID int64) (created bool, err error)

	SubscribeImmediate(ctx context.Context, userID, categoryID int64) error
	UnsubscribeImmediate(ctx context.Context, userID, categoryID int64) error
	// ListImmediateSubscribers возвращает прямых подписчиков рубрики
	// для мгновенных уведомлений.
	ListImmediateSubscribers(ctx context.Context, categoryID int64) ([]User, error)

	SubscribeDigest(ctx context.Context, userID, categoryID int64) error
	UnsubscribeDigest(ctx context.Context, userID, categoryID int64) error
	// ListActiveDigestSubscribers возвращает действующих подписчиков
	// с непустым набором рубрик.
	ListActiveDigestSubscribers(ctx context.Context) ([]Subscriber, error)
	// ListNewsForCategories возвращает новости указанных рубрик
	// с created_at в интервале (from, to], без дублей, новые первыми.
	ListNewsForCategories(ctx context.Context, categoryIDs []int64, from, to time.Time) ([]Post, error)
	// AdvanceDigestWatermark двигает watermark подписчика вперёд.
	// Откат назад невозможен: обновление с меньшим значением — no-op.
	AdvanceDigestWatermark(ctx context.Context, subscriberID int64, to time.Time) error
}

// Mailer отправляет одно письмо.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Renderer строит тело письма по имени шаблона.
type Renderer interface {
	Render(template string, data any) (string, error)
}

// Cache — run-once замок с TTL: fn выполняется только у захватившего ключ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
}
