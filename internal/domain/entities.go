package domain

import "time"

// PostType определяет вид публикации.
type PostType string

const (
	// PostTypeArticle — статья.
	PostTypeArticle PostType = "ARTICLE"
	// PostTypeNews — новость. Только новости попадают в рассылки.
	PostTypeNews PostType = "NEWS"
)

const previewLength = 124

// User описывает зарегистрированного пользователя портала.
type User struct {
	ID        int64
	Email     string
	Username  string
	CreatedAt time.Time
}

// Author описывает авторский профиль пользователя.
// Rating — производное значение, пересчитывается целиком агрегатором.
type Author struct {
	ID     int64
	UserID int64
	Rating int
}

// Category описывает рубрику портала.
type Category struct {
	ID   int64
	Name string
}

// Post представляет публикацию.
type Post struct {
	ID        int64
	AuthorID  int64
	Type      PostType
	Title     string
	Content   string
	Rating    int
	CreatedAt time.Time
}

// Preview возвращает укороченный текст публикации для писем и списков.
func (p Post) Preview() string {
	runes := []rune(p.Content)
	if len(runes) <= previewLength {
		return p.Content
	}
	return string(runes[:previewLength]) + "..."
}

// Comment представляет комментарий к публикации.
type Comment struct {
	ID        int64
	PostID    int64
	UserID    int64
	Text      string
	Rating    int
	CreatedAt time.Time
}

// Subscriber описывает подписчика еженедельной рассылки.
// LastDigestSent — watermark: граница уже обработанных публикаций,
// двигается только после подтверждённой отправки и только вперёд.
type Subscriber struct {
	ID             int64
	UserID         int64
	Email          string
	Username       string
	LastDigestSent *time.Time
	UnsubscribedAt *time.Time
	Categories     []Category
}

// Active сообщает, действует ли подписка.
func (s Subscriber) Active() bool {
	return s.UnsubscribedAt == nil
}

// RatingComponents содержит слагаемые рейтинга автора.
type RatingComponents struct {
	PostRatingSum          int
	OwnCommentRatingSum    int
	OthersCommentRatingSum int
}

// DigestRunSummary — итог одного запуска рассылки.
type DigestRunSummary struct {
	Sent    int
	Failed  int
	Skipped int
}
