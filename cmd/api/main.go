package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"news-portal/internal/adapters/mailer"
	"news-portal/internal/adapters/render"
	"news-portal/internal/adapters/repo"
	"news-portal/internal/domain"
	"news-portal/internal/infra/config"
	"news-portal/internal/infra/db"
	httpinfra "news-portal/internal/infra/http"
	"news-portal/internal/infra/log"
	"news-portal/internal/infra/metrics"
	"news-portal/internal/infra/queue"
	"news-portal/internal/usecase/events"
	"news-portal/internal/usecase/notify"
	"news-portal/internal/usecase/posts"
	"news-portal/internal/usecase/rating"
	"news-portal/internal/usecase/subscriptions"
	"news-portal/internal/usecase/users"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	notifyQueue := buildQueue(cfg, logger)

	renderer, err := render.NewTemplates()
	if err != nil {
		logger.Fatal().Err(err).Msg("api: шаблоны писем")
	}
	mail := buildMailer(cfg, logger)

	site := notify.SiteInfo{Name: cfg.Site.Name, URL: cfg.Site.URL}
	sender := notify.NewSender(repoAdapter, repoAdapter, renderer, mail, site, logger.With().Str("component", "notify").Logger())
	dispatcher := notify.NewDispatcher(repoAdapter, repoAdapter, notifyQueue, sender, logger.With().Str("component", "notify").Logger())
	bus := events.NewBus(logger.With().Str("component", "events").Logger(), dispatcher)

	userService := users.NewService(repoAdapter, bus)
	subscriptionService := subscriptions.NewService(repoAdapter)
	postService := posts.NewService(repoAdapter, repoAdapter, repoAdapter, bus, cfg.Limits.NewsCount, cfg.Limits.NewsWindow)
	ratingService := rating.NewService(repoAdapter)

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	r := srv.Router

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Email    string `json:"email"`
				Username string `json:"username"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			user, author, err := userService.Register(req.Context(), body.Email, body.Username)
			if err != nil {
				if errors.Is(err, users.ErrEmptyEmail) {
					httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
					return
				}
				logger.Error().Err(err).Msg("api: регистрация")
				httpinfra.WriteError(w, http.StatusInternalServerError, "registration failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{
				"user_id":   user.ID,
				"author_id": author.ID,
			})
		})

		r.Post("/categories", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Name == "" {
				httpinfra.WriteError(w, http.StatusBadRequest, "name is required")
				return
			}
			category, err := repoAdapter.CreateCategory(req.Context(), body.Name)
			if err != nil {
				logger.Error().Err(err).Msg("api: создание рубрики")
				httpinfra.WriteError(w, http.StatusInternalServerError, "category creation failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusCreated, category)
		})

		r.Get("/categories", func(w http.ResponseWriter, req *http.Request) {
			categories, err := repoAdapter.ListCategories(req.Context())
			if err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, "listing failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, categories)
		})

		r.Post("/categories/{id}/subscribe", func(w http.ResponseWriter, req *http.Request) {
			categoryID, userID, ok := idAndUser(w, req)
			if !ok {
				return
			}
			if err := subscriptionService.SubscribeImmediate(req.Context(), userID, categoryID); err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, "subscribe failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
		})

		r.Post("/categories/{id}/unsubscribe", func(w http.ResponseWriter, req *http.Request) {
			categoryID, userID, ok := idAndUser(w, req)
			if !ok {
				return
			}
			if err := subscriptionService.UnsubscribeImmediate(req.Context(), userID, categoryID); err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, "unsubscribe failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
		})

		r.Post("/categories/{id}/digest/subscribe", func(w http.ResponseWriter, req *http.Request) {
			categoryID, userID, ok := idAndUser(w, req)
			if !ok {
				return
			}
			if err := subscriptionService.SubscribeToDigest(req.Context(), userID, categoryID); err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, "subscribe failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
		})

		r.Post("/categories/{id}/digest/unsubscribe", func(w http.ResponseWriter, req *http.Request) {
			categoryID, userID, ok := idAndUser(w, req)
			if !ok {
				return
			}
			if err := subscriptionService.UnsubscribeFromDigest(req.Context(), userID, categoryID); err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, "unsubscribe failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
		})

		r.Post("/posts", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				AuthorID    int64   `json:"author_id"`
				Type        string  `json:"type"`
				Title       string  `json:"title"`
				Content     string  `json:"content"`
				CategoryIDs []int64 `json:"category_ids"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			post, err := postService.CreatePost(req.Context(), posts.CreatePostInput{
				AuthorID:    body.AuthorID,
				Type:        domain.PostType(body.Type),
				Title:       body.Title,
				Content:     body.Content,
				CategoryIDs: body.CategoryIDs,
			})
			if err != nil {
				switch {
				case errors.Is(err, posts.ErrRateLimited):
					httpinfra.WriteError(w, http.StatusTooManyRequests, err.Error())
				case errors.Is(err, posts.ErrInvalidPostType), errors.Is(err, posts.ErrEmptyTitle):
					httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
				case errors.Is(err, repo.ErrNotFound):
					httpinfra.WriteError(w, http.StatusNotFound, err.Error())
				default:
					logger.Error().Err(err).Msg("api: создание публикации")
					httpinfra.WriteError(w, http.StatusInternalServerError, "post creation failed")
				}
				return
			}
			httpinfra.WriteJSON(w, http.StatusCreated, post)
		})

		r.Post("/posts/{id}/categories", func(w http.ResponseWriter, req *http.Request) {
			postID, ok := pathID(w, req)
			if !ok {
				return
			}
			var body struct {
				CategoryID int64 `json:"category_id"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			created, err := postService.LinkCategory(req.Context(), postID, body.CategoryID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					httpinfra.WriteError(w, http.StatusNotFound, err.Error())
					return
				}
				httpinfra.WriteError(w, http.StatusInternalServerError, "link failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]bool{"created": created})
		})

		r.Post("/posts/{id}/like", ratePost(postService.LikePost, logger))
		r.Post("/posts/{id}/dislike", ratePost(postService.DislikePost, logger))

		r.Post("/posts/{id}/comments", func(w http.ResponseWriter, req *http.Request) {
			postID, ok := pathID(w, req)
			if !ok {
				return
			}
			var body struct {
				UserID int64  `json:"user_id"`
				Text   string `json:"text"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			comment, err := postService.CreateComment(req.Context(), postID, body.UserID, body.Text)
			if err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			httpinfra.WriteJSON(w, http.StatusCreated, comment)
		})

		r.Post("/comments/{id}/like", ratePost(postService.LikeComment, logger))
		r.Post("/comments/{id}/dislike", ratePost(postService.DislikeComment, logger))

		r.Post("/authors/{id}/rating/recompute", func(w http.ResponseWriter, req *http.Request) {
			authorID, ok := pathID(w, req)
			if !ok {
				return
			}
			value, err := ratingService.RecomputeAuthorRating(req.Context(), authorID)
			if err != nil {
				logger.Error().Err(err).Msg("api: пересчёт рейтинга")
				httpinfra.WriteError(w, http.StatusInternalServerError, "recompute failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]int{"rating": value})
		})

		r.Get("/news", func(w http.ResponseWriter, req *http.Request) {
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			newsList, err := postService.ListNews(req.Context(), limit)
			if err != nil {
				httpinfra.WriteError(w, http.StatusInternalServerError, "listing failed")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, map[string]any{
				"news":  newsList,
				"total": len(newsList),
			})
		})

		r.Get("/news/{id}", func(w http.ResponseWriter, req *http.Request) {
			newsID, ok := pathID(w, req)
			if !ok {
				return
			}
			post, err := postService.GetNews(req.Context(), newsID)
			if err != nil {
				httpinfra.WriteError(w, http.StatusNotFound, "news not found")
				return
			}
			httpinfra.WriteJSON(w, http.StatusOK, post)
		})
	})

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), fmt.Sprintf(":%d", cfg.MetricsPort))

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildQueue выбирает брокер: AMQP при заданном URL, иначе Redis.
func buildQueue(cfg config.AppConfig, logger zerolog.Logger) domain.NotifyQueue {
	if cfg.AMQPURL != "" {
		q, err := queue.NewRabbitNotifyQueue(cfg.AMQPURL, cfg.Queues.Notify)
		if err != nil {
			logger.Fatal().Err(err).Msg("очередь AMQP не сконфигурирована")
		}
		return q
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return queue.NewRedisNotifyQueue(client, cfg.Queues.Notify)
}

// buildMailer возвращает SMTP-транспорт или noop-заглушку без SMTP_HOST.
func buildMailer(cfg config.AppConfig, logger zerolog.Logger) domain.Mailer {
	if cfg.SMTP.Host == "" {
		logger.Warn().Msg("SMTP не сконфигурирован, письма уходят в лог")
		return mailer.NewNoop(logger)
	}
	m, err := mailer.NewSMTP(mailer.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		User:        cfg.SMTP.User,
		Pass:        cfg.SMTP.Pass,
		From:        cfg.SMTP.From,
		SendTimeout: cfg.SendTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("почтовый транспорт не сконфигурирован")
	}
	return m
}

// ratePost оборачивает операции like/dislike в единый обработчик.
func ratePost(adjust func(context.Context, int64) (int, error), logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, ok := pathID(w, req)
		if !ok {
			return
		}
		value, err := adjust(req.Context(), id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				httpinfra.WriteError(w, http.StatusNotFound, "not found")
				return
			}
			logger.Error().Err(err).Msg("api: изменение рейтинга")
			httpinfra.WriteError(w, http.StatusInternalServerError, "rating update failed")
			return
		}
		httpinfra.WriteJSON(w, http.StatusOK, map[string]int{"rating": value})
	}
}

func pathID(w http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func idAndUser(w http.ResponseWriter, req *http.Request) (int64, int64, bool) {
	categoryID, ok := pathID(w, req)
	if !ok {
		return 0, 0, false
	}
	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.UserID <= 0 {
		httpinfra.WriteError(w, http.StatusBadRequest, "user_id is required")
		return 0, 0, false
	}
	return categoryID, body.UserID, true
}
