package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

type stubSubsRepo struct {
	byCategory map[int64][]domain.User
}

func (s *stubSubsRepo) LinkPostToCategory(context.Context, int64, int64) (bool, error) {
	return false, nil
}
func (s *stubSubsRepo) SubscribeImmediate(context.Context, int64, int64) error   { return nil }
func (s *stubSubsRepo) UnsubscribeImmediate(context.Context, int64, int64) error { return nil }
func (s *stubSubsRepo) ListImmediateSubscribers(_ context.Context, categoryID int64) ([]domain.User, error) {
	return s.byCategory[categoryID], nil
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

type stubAuthorRepo struct {
	authors map[int64]domain.Author
}

func (s *stubAuthorRepo) GetAuthor(_ context.Context, id int64) (domain.Author, error) {
	author, ok := s.authors[id]
	if !ok {
		return domain.Author{}, errors.New("нет автора")
	}
	return author, nil
}
func (s *stubAuthorRepo) RatingComponents(context.Context, int64) (domain.RatingComponents, error) {
	return domain.RatingComponents{}, nil
}
func (s *stubAuthorRepo) UpdateAuthorRating(context.Context, int64, int) error { return nil }

type stubQueue struct {
	unavailable bool
	jobs        []domain.NotificationJob
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.NotificationJob) (domain.EnqueueStatus, error) {
	if q.unavailable {
		return domain.QueueUnavailable, errors.New("брокер недоступен")
	}
	q.jobs = append(q.jobs, job)
	return domain.Enqueued, nil
}

func (q *stubQueue) Pop(context.Context) (domain.NotificationJob, error) {
	return domain.NotificationJob{}, errors.New("не используется")
}

type stubUserRepo struct {
	users map[int64]domain.User
}

func (s *stubUserRepo) CreateUser(context.Context, string, string) (domain.User, error) {
	return domain.User{}, nil
}
func (s *stubUserRepo) GetUser(_ context.Context, id int64) (domain.User, error) {
	return s.users[id], nil
}
func (s *stubUserRepo) GetUsersByIDs(_ context.Context, ids []int64) ([]domain.User, error) {
	var result []domain.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			result = append(result, user)
		}
	}
	return result, nil
}
func (s *stubUserRepo) EnsureAuthor(context.Context, int64) (domain.Author, error) {
	return domain.Author{}, nil
}

type stubPostsRepo struct {
	posts map[int64]domain.Post
}

func (s *stubPostsRepo) CreatePost(_ context.Context, p domain.Post) (domain.Post, error) {
	return p, nil
}
func (s *stubPostsRepo) GetPost(_ context.Context, id int64) (domain.Post, error) {
	post, ok := s.posts[id]
	if !ok {
		return domain.Post{}, errors.New("нет публикации")
	}
	return post, nil
}
func (s *stubPostsRepo) ListNews(context.Context, int) ([]domain.Post, error) { return nil, nil }
func (s *stubPostsRepo) CountNewsByAuthorSince(context.Context, int64, time.Time, time.Time) (int, error) {
	return 0, nil
}
func (s *stubPostsRepo) AdjustPostRating(context.Context, int64, int) (int, error) { return 0, nil }
func (s *stubPostsRepo) ListPostCategories(context.Context, int64) ([]domain.Category, error) {
	return nil, nil
}
func (s *stubPostsRepo) CreateComment(_ context.Context, c domain.Comment) (domain.Comment, error) {
	return c, nil
}
func (s *stubPostsRepo) AdjustCommentRating(context.Context, int64, int) (int, error) {
	return 0, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(string, any) (string, error) { return "<html>тело</html>", nil }

type stubMailer struct {
	sent    []string
	failFor map[string]bool
}

func (m *stubMailer) Send(_ context.Context, to, _, _ string) error {
	if m.failFor[to] {
		return errors.New("адрес недоступен")
	}
	m.sent = append(m.sent, to)
	return nil
}

func newTestDispatcher(subs *stubSubsRepo, queue *stubQueue, mail *stubMailer, posts map[int64]domain.Post) *Dispatcher {
	return newTestDispatcherWithMailer(subs, queue, mail, posts)
}

func newTestDispatcherWithMailer(subs *stubSubsRepo, queue *stubQueue, mail domain.Mailer, posts map[int64]domain.Post) *Dispatcher {
	users := &stubUserRepo{users: map[int64]domain.User{
		1: {ID: 1, Email: "author@example.com", Username: "author"},
		2: {ID: 2, Email: "ivan@example.com", Username: "ivan"},
		3: {ID: 3, Email: "olga@example.com", Username: "olga"},
	}}
	authors := &stubAuthorRepo{authors: map[int64]domain.Author{100: {ID: 100, UserID: 1}}}
	sender := NewSender(users, &stubPostsRepo{posts: posts}, stubRenderer{}, mail, SiteInfo{Name: "NewsPortal", URL: "http://example.com"}, zerolog.Nop())
	return NewDispatcher(subs, authors, queue, sender, zerolog.Nop())
}

func TestAuthorNeverNotifiedAboutOwnPost(t *testing.T) {
	// Автор (user 1) подписан на собственную рубрику.
	subs := &stubSubsRepo{byCategory: map[int64][]domain.User{
		10: {{ID: 1}, {ID: 2}},
	}}
	queue := &stubQueue{}
	dispatcher := newTestDispatcher(subs, queue, &stubMailer{}, nil)

	post := domain.Post{ID: 5, AuthorID: 100, Type: domain.PostTypeNews, Title: "новость"}
	err := dispatcher.HandleEvent(context.Background(), domain.PostCreated{
		Post:       post,
		Categories: []domain.Category{{ID: 10}},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("ожидали одну задачу, получили %d", len(queue.jobs))
	}
	for _, id := range queue.jobs[0].RecipientIDs {
		if id == 1 {
			t.Fatalf("автор не должен быть получателем собственной новости")
		}
	}
}

func TestFanOutDeduplicatesAcrossCategories(t *testing.T) {
	// Пользователь 2 подписан на обе рубрики публикации.
	subs := &stubSubsRepo{byCategory: map[int64][]domain.User{
		10: {{ID: 2}, {ID: 3}},
		20: {{ID: 2}},
	}}
	queue := &stubQueue{}
	dispatcher := newTestDispatcher(subs, queue, &stubMailer{}, nil)

	post := domain.Post{ID: 5, AuthorID: 100, Type: domain.PostTypeNews, Title: "новость"}
	err := dispatcher.HandleEvent(context.Background(), domain.PostCreated{
		Post:       post,
		Categories: []domain.Category{{ID: 10}, {ID: 20}},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("ожидали одну задачу, получили %d", len(queue.jobs))
	}
	if got := len(queue.jobs[0].RecipientIDs); got != 2 {
		t.Fatalf("ожидали 2 получателей без дублей, получили %d", got)
	}
}

func TestArticleDoesNotFanOut(t *testing.T) {
	subs := &stubSubsRepo{byCategory: map[int64][]domain.User{10: {{ID: 2}}}}
	queue := &stubQueue{}
	dispatcher := newTestDispatcher(subs, queue, &stubMailer{}, nil)

	post := domain.Post{ID: 5, AuthorID: 100, Type: domain.PostTypeArticle, Title: "статья"}
	err := dispatcher.HandleEvent(context.Background(), domain.PostCreated{
		Post:       post,
		Categories: []domain.Category{{ID: 10}},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("статьи не рассылаются, получили %d задач", len(queue.jobs))
	}
}

// chanMailer отдаёт адреса доставок в канал: резервная отправка идёт
// в отдельной горутине, и тест дожидается её через канал.
type chanMailer struct {
	delivered chan string
	release   chan struct{}
}

func (m *chanMailer) Send(_ context.Context, to, _, _ string) error {
	if m.release != nil {
		<-m.release
	}
	m.delivered <- to
	return nil
}

func TestFallbackDeliversWhenQueueUnavailable(t *testing.T) {
	subs := &stubSubsRepo{byCategory: map[int64][]domain.User{
		10: {{ID: 2}, {ID: 3}},
	}}
	queue := &stubQueue{unavailable: true}
	mail := &chanMailer{delivered: make(chan string, 2)}
	post := domain.Post{ID: 5, AuthorID: 100, Type: domain.PostTypeNews, Title: "новость"}
	dispatcher := newTestDispatcherWithMailer(subs, queue, mail, map[int64]domain.Post{5: post})

	err := dispatcher.HandleEvent(context.Background(), domain.PostCreated{
		Post:       post,
		Categories: []domain.Category{{ID: 10}},
	})
	if err != nil {
		t.Fatalf("недоступная очередь не должна быть ошибкой события: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-mail.delivered:
		case <-time.After(time.Second):
			t.Fatalf("ожидали резервную доставку двум получателям, дошло %d", i)
		}
	}
}

func TestFallbackDoesNotBlockEventHandling(t *testing.T) {
	subs := &stubSubsRepo{byCategory: map[int64][]domain.User{
		10: {{ID: 2}, {ID: 3}},
	}}
	queue := &stubQueue{unavailable: true}
	// Отправка стоит на месте, пока тест её не отпустит: вернувшийся
	// до этого HandleEvent доказывает, что рассылка идёт вне вызова.
	mail := &chanMailer{delivered: make(chan string, 2), release: make(chan struct{})}
	post := domain.Post{ID: 5, AuthorID: 100, Type: domain.PostTypeNews, Title: "новость"}
	dispatcher := newTestDispatcherWithMailer(subs, queue, mail, map[int64]domain.Post{5: post})

	err := dispatcher.HandleEvent(context.Background(), domain.PostCreated{
		Post:       post,
		Categories: []domain.Category{{ID: 10}},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	close(mail.release)
	for i := 0; i < 2; i++ {
		select {
		case <-mail.delivered:
		case <-time.After(time.Second):
			t.Fatalf("резервная доставка не завершилась, дошло %d", i)
		}
	}
}

func TestFallbackSurvivesRequestCancellation(t *testing.T) {
	subs := &stubSubsRepo{byCategory: map[int64][]domain.User{
		10: {{ID: 2}},
	}}
	queue := &stubQueue{unavailable: true}
	mail := &chanMailer{delivered: make(chan string, 1)}
	post := domain.Post{ID: 5, AuthorID: 100, Type: domain.PostTypeNews, Title: "новость"}
	dispatcher := newTestDispatcherWithMailer(subs, queue, mail, map[int64]domain.Post{5: post})

	ctx, cancel := context.WithCancel(context.Background())
	err := dispatcher.HandleEvent(ctx, domain.PostCreated{
		Post:       post,
		Categories: []domain.Category{{ID: 10}},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	cancel()

	select {
	case <-mail.delivered:
	case <-time.After(time.Second):
		t.Fatalf("отмена запроса не должна обрывать резервную доставку")
	}
}

func TestWelcomeJobForRegisteredUser(t *testing.T) {
	queue := &stubQueue{}
	dispatcher := newTestDispatcher(&stubSubsRepo{}, queue, &stubMailer{}, nil)

	err := dispatcher.HandleEvent(context.Background(), domain.UserRegistered{
		User: domain.User{ID: 2, Email: "ivan@example.com"},
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("ожидали одну задачу, получили %d", len(queue.jobs))
	}
	job := queue.jobs[0]
	if job.Kind != domain.NotificationWelcome {
		t.Fatalf("ожидали welcome, получили %s", job.Kind)
	}
	if len(job.RecipientIDs) != 1 || job.RecipientIDs[0] != 2 {
		t.Fatalf("ожидали единственного получателя 2, получили %v", job.RecipientIDs)
	}
}
