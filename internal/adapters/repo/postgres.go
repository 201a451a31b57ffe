package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"news-portal/internal/domain"
	"news-portal/internal/infra/metrics"
)

// ErrNotFound возвращается, если запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var (
	_ domain.UserRepo         = (*Postgres)(nil)
	_ domain.AuthorRepo       = (*Postgres)(nil)
	_ domain.CategoryRepo     = (*Postgres)(nil)
	_ domain.PostRepo         = (*Postgres)(nil)
	_ domain.SubscriptionRepo = (*Postgres)(nil)
)

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateUser регистрирует пользователя.
func (p *Postgres) CreateUser(ctx context.Context, email, username string) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO users (email, username)
VALUES ($1, $2)
RETURNING id, email, username, created_at
`, email, username).Scan(&user.ID, &user.Email, &user.Username, &user.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	if err != nil {
		return domain.User{}, fmt.Errorf("создание пользователя: %w", err)
	}
	return user, nil
}

// GetUser возвращает пользователя по идентификатору.
func (p *Postgres) GetUser(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var user domain.User
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, email, username, created_at FROM users WHERE id = $1
`, id).Scan(&user.ID, &user.Email, &user.Username, &user.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_select", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// GetUsersByIDs возвращает пользователей по списку идентификаторов.
func (p *Postgres) GetUsersByIDs(ctx context.Context, ids []int64) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, email, username, created_at FROM users WHERE id = ANY($1)
`, ids)
	metrics.ObserveNetworkRequest("postgres", "users_select_many", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Username, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// EnsureAuthor создаёт авторский профиль, если его ещё нет.
func (p *Postgres) EnsureAuthor(ctx context.Context, userID int64) (domain.Author, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var author domain.Author
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO authors (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, rating
`, userID).Scan(&author.ID, &author.UserID, &author.Rating)
	metrics.ObserveNetworkRequest("postgres", "authors_upsert", "authors", start, err)
	if err != nil {
		return domain.Author{}, fmt.Errorf("создание автора: %w", err)
	}
	return author, nil
}

// GetAuthor возвращает автора по идентификатору.
func (p *Postgres) GetAuthor(ctx context.Context, id int64) (domain.Author, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var author domain.Author
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, user_id, rating FROM authors WHERE id = $1
`, id).Scan(&author.ID, &author.UserID, &author.Rating)
	metrics.ObserveNetworkRequest("postgres", "authors_select", "authors", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Author{}, ErrNotFound
	}
	if err != nil {
		return domain.Author{}, err
	}
	return author, nil
}

// RatingComponents возвращает слагаемые рейтинга автора одним запросом.
// Пустые суммы приводятся к нулю на стороне БД.
func (p *Postgres) RatingComponents(ctx context.Context, authorID int64) (domain.RatingComponents, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var comps domain.RatingComponents
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT
	COALESCE((SELECT SUM(p.rating) FROM posts p WHERE p.author_id = $1), 0),
	COALESCE((SELECT SUM(c.rating) FROM comments c
		WHERE c.user_id = (SELECT user_id FROM authors WHERE id = $1)), 0),
	COALESCE((SELECT SUM(c.rating) FROM comments c
		JOIN posts p ON p.id = c.post_id
		WHERE p.author_id = $1
		  AND c.user_id <> (SELECT user_id FROM authors WHERE id = $1)), 0)
`, authorID).Scan(&comps.PostRatingSum, &comps.OwnCommentRatingSum, &comps.OthersCommentRatingSum)
	metrics.ObserveNetworkRequest("postgres", "rating_components", "authors", start, err)
	if err != nil {
		return domain.RatingComponents{}, fmt.Errorf("слагаемые рейтинга: %w", err)
	}
	return comps, nil
}

// UpdateAuthorRating сохраняет пересчитанный рейтинг.
func (p *Postgres) UpdateAuthorRating(ctx context.Context, authorID int64, rating int) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE authors SET rating = $2 WHERE id = $1
`, authorID, rating)
	metrics.ObserveNetworkRequest("postgres", "authors_update", "authors", start, err)
	return err
}

// CreateCategory создаёт рубрику.
func (p *Postgres) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var category domain.Category
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO categories (name)
VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name
`, name).Scan(&category.ID, &category.Name)
	metrics.ObserveNetworkRequest("postgres", "categories_upsert", "categories", start, err)
	if err != nil {
		return domain.Category{}, fmt.Errorf("создание рубрики: %w", err)
	}
	return category, nil
}

// GetCategory возвращает рубрику по идентификатору.
func (p *Postgres) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var category domain.Category
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, name FROM categories WHERE id = $1
`, id).Scan(&category.ID, &category.Name)
	metrics.ObserveNetworkRequest("postgres", "categories_select", "categories", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Category{}, ErrNotFound
	}
	if err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// ListCategories возвращает все рубрики.
func (p *Postgres) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	metrics.ObserveNetworkRequest("postgres", "categories_list", "categories", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// CreatePost сохраняет публикацию.
func (p *Postgres) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO posts (author_id, post_type, title, content)
VALUES ($1, $2, $3, $4)
RETURNING id, rating, created_at
`, post.AuthorID, string(post.Type), post.Title, post.Content).Scan(&post.ID, &post.Rating, &post.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "posts_insert", "posts", start, err)
	if err != nil {
		return domain.Post{}, fmt.Errorf("создание публикации: %w", err)
	}
	return post, nil
}

// GetPost возвращает публикацию по идентификатору.
func (p *Postgres) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var post domain.Post
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, author_id, post_type, title, content, rating, created_at
FROM posts WHERE id = $1
`, id).Scan(&post.ID, &post.AuthorID, &post.Type, &post.Title, &post.Content, &post.Rating, &post.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "posts_select", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, ErrNotFound
	}
	if err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// ListNews возвращает новости, новые первыми.
func (p *Postgres) ListNews(ctx context.Context, limit int) ([]domain.Post, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, author_id, post_type, title, content, rating, created_at
FROM posts
WHERE post_type = $1
ORDER BY created_at DESC
LIMIT $2
`, string(domain.PostTypeNews), limit)
	metrics.ObserveNetworkRequest("postgres", "news_list", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// CountNewsByAuthorSince считает новости автора в скользящем окне.
func (p *Postgres) CountNewsByAuthorSince(ctx context.Context, authorID int64, since, until time.Time) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM posts
WHERE author_id = $1 AND post_type = $2 AND created_at >= $3 AND created_at <= $4
`, authorID, string(domain.PostTypeNews), since, until).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "news_count", "posts", start, err)
	if err != nil {
		return 0, fmt.Errorf("подсчёт новостей: %w", err)
	}
	return count, nil
}

// AdjustPostRating смещает рейтинг публикации и возвращает новое значение.
func (p *Postgres) AdjustPostRating(ctx context.Context, postID int64, delta int) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var rating int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
UPDATE posts SET rating = rating + $2 WHERE id = $1 RETURNING rating
`, postID, delta).Scan(&rating)
	metrics.ObserveNetworkRequest("postgres", "posts_rating", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return rating, nil
}

// ListPostCategories возвращает рубрики публикации.
func (p *Postgres) ListPostCategories(ctx context.Context, postID int64) ([]domain.Category, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT c.id, c.name
FROM categories c
JOIN post_categories pc ON pc.category_id = c.id
WHERE pc.post_id = $1
ORDER BY c.name
`, postID)
	metrics.ObserveNetworkRequest("postgres", "post_categories_list", "post_categories", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// CreateComment сохраняет комментарий.
func (p *Postgres) CreateComment(ctx context.Context, comment domain.Comment) (domain.Comment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO comments (post_id, user_id, body)
VALUES ($1, $2, $3)
RETURNING id, rating, created_at
`, comment.PostID, comment.UserID, comment.Text).Scan(&comment.ID, &comment.Rating, &comment.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "comments_insert", "comments", start, err)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("создание комментария: %w", err)
	}
	return comment, nil
}

// AdjustCommentRating смещает рейтинг комментария.
func (p *Postgres) AdjustCommentRating(ctx context.Context, commentID int64, delta int) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var rating int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
UPDATE comments SET rating = rating + $2 WHERE id = $1 RETURNING rating
`, commentID, delta).Scan(&rating)
	metrics.ObserveNetworkRequest("postgres", "comments_rating", "comments", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return rating, nil
}

// LinkPostToCategory создаёт связку публикации и рубрики.
// Уникальность пары гарантирует первичный ключ: повторная вставка
// не создаёт второй строки и не считается ошибкой.
func (p *Postgres) LinkPostToCategory(ctx context.Context, postID, categoryID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO post_categories (post_id, category_id)
VALUES ($1, $2)
ON CONFLICT (post_id, category_id) DO NOTHING
`, postID, categoryID)
	metrics.ObserveNetworkRequest("postgres", "post_categories_insert", "post_categories", start, err)
	if err != nil {
		return false, fmt.Errorf("связка с рубрикой: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SubscribeImmediate добавляет прямого подписчика рубрики.
func (p *Postgres) SubscribeImmediate(ctx context.Context, userID, categoryID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO category_subscribers (category_id, user_id)
VALUES ($1, $2)
ON CONFLICT (category_id, user_id) DO NOTHING
`, categoryID, userID)
	metrics.ObserveNetworkRequest("postgres", "category_subscribers_insert", "category_subscribers", start, err)
	return err
}

// UnsubscribeImmediate убирает прямого подписчика рубрики.
func (p *Postgres) UnsubscribeImmediate(ctx context.Context, userID, categoryID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
DELETE FROM category_subscribers WHERE category_id = $1 AND user_id = $2
`, categoryID, userID)
	metrics.ObserveNetworkRequest("postgres", "category_subscribers_delete", "category_subscribers", start, err)
	return err
}

// ListImmediateSubscribers возвращает прямых подписчиков рубрики.
func (p *Postgres) ListImmediateSubscribers(ctx context.Context, categoryID int64) ([]domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT u.id, u.email, u.username, u.created_at
FROM users u
JOIN category_subscribers cs ON cs.user_id = u.id
WHERE cs.category_id = $1
`, categoryID)
	metrics.ObserveNetworkRequest("postgres", "category_subscribers_list", "category_subscribers", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Username, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SubscribeDigest включает рубрику в подписку пользователя.
// Подписчик создаётся лениво; повторная подписка снимает отписку.
func (p *Postgres) SubscribeDigest(ctx context.Context, userID, categoryID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var subscriberID int64
	err := p.pool.QueryRow(ctx, `
INSERT INTO subscribers (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET unsubscribed_at = NULL
RETURNING id
`, userID).Scan(&subscriberID)
	metrics.ObserveNetworkRequest("postgres", "subscribers_upsert", "subscribers", start, err)
	if err != nil {
		return fmt.Errorf("создание подписчика: %w", err)
	}

	start = time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO subscriber_categories (subscriber_id, category_id)
VALUES ($1, $2)
ON CONFLICT (subscriber_id, category_id) DO NOTHING
`, subscriberID, categoryID)
	metrics.ObserveNetworkRequest("postgres", "subscriber_categories_insert", "subscriber_categories", start, err)
	if err != nil {
		return fmt.Errorf("подписка на рубрику: %w", err)
	}
	return nil
}

// UnsubscribeDigest исключает рубрику из подписки пользователя.
func (p *Postgres) UnsubscribeDigest(ctx context.Context, userID, categoryID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
DELETE FROM subscriber_categories sc
USING subscribers s
WHERE sc.subscriber_id = s.id AND s.user_id = $1 AND sc.category_id = $2
`, userID, categoryID)
	metrics.ObserveNetworkRequest("postgres", "subscriber_categories_delete", "subscriber_categories", start, err)
	return err
}

// ListActiveDigestSubscribers возвращает действующих подписчиков
// с непустым набором рубрик.
func (p *Postgres) ListActiveDigestSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT s.id, s.user_id, u.email, u.username, s.last_digest_sent, c.id, c.name
FROM subscribers s
JOIN users u ON u.id = s.user_id
JOIN subscriber_categories sc ON sc.subscriber_id = s.id
JOIN categories c ON c.id = sc.category_id
WHERE s.unsubscribed_at IS NULL
ORDER BY s.id
`)
	metrics.ObserveNetworkRequest("postgres", "subscribers_list", "subscribers", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	index := make(map[int64]int)
	for rows.Next() {
		var (
			sub      domain.Subscriber
			lastSent sql.NullTime
			category domain.Category
		)
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Email, &sub.Username, &lastSent, &category.ID, &category.Name); err != nil {
			return nil, err
		}
		pos, ok := index[sub.ID]
		if !ok {
			if lastSent.Valid {
				ts := lastSent.Time
				sub.LastDigestSent = &ts
			}
			index[sub.ID] = len(subscribers)
			subscribers = append(subscribers, sub)
			pos = index[sub.ID]
		}
		subscribers[pos].Categories = append(subscribers[pos].Categories, category)
	}
	return subscribers, rows.Err()
}

// ListNewsForCategories возвращает новости рубрик в окне (from, to].
func (p *Postgres) ListNewsForCategories(ctx context.Context, categoryIDs []int64, from, to time.Time) ([]domain.Post, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT p.id, p.author_id, p.post_type, p.title, p.content, p.rating, p.created_at
FROM posts p
JOIN post_categories pc ON pc.post_id = p.id
WHERE pc.category_id = ANY($1)
  AND p.post_type = $2
  AND p.created_at > $3
  AND p.created_at <= $4
ORDER BY p.created_at DESC
`, categoryIDs, string(domain.PostTypeNews), from, to)
	metrics.ObserveNetworkRequest("postgres", "news_window", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// AdvanceDigestWatermark двигает watermark подписчика вперёд.
// Монотонность обеспечивает условие в запросе: запись с меньшим
// значением не перетирает уже подтверждённую отправку.
func (p *Postgres) AdvanceDigestWatermark(ctx context.Context, subscriberID int64, to time.Time) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE subscribers
SET last_digest_sent = $2
WHERE id = $1 AND (last_digest_sent IS NULL OR last_digest_sent < $2)
`, subscriberID, to)
	metrics.ObserveNetworkRequest("postgres", "watermark_advance", "subscribers", start, err)
	return err
}

func scanPosts(rows pgx.Rows) ([]domain.Post, error) {
	var posts []domain.Post
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Type, &post.Title, &post.Content, &post.Rating, &post.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
