package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"news-portal/internal/domain"
	"news-portal/internal/usecase/events"
)

// ErrEmptyEmail возвращается при регистрации без адреса почты.
var ErrEmptyEmail = errors.New("пустой адрес почты")

// Service регистрирует пользователей.
type Service struct {
	users domain.UserRepo
	bus   *events.Bus
}

// NewService создаёт сервис пользователей.
func NewService(users domain.UserRepo, bus *events.Bus) *Service {
	return &Service{users: users, bus: bus}
}

// Register создаёт пользователя с авторским профилем и публикует
// событие UserRegistered после фиксации записи.
func (s *Service) Register(ctx context.Context, email, username string) (domain.User, domain.Author, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, domain.Author{}, ErrEmptyEmail
	}
	user, err := s.users.CreateUser(ctx, email, username)
	if err != nil {
		return domain.User{}, domain.Author{}, fmt.Errorf("регистрация: %w", err)
	}
	author, err := s.users.EnsureAuthor(ctx, user.ID)
	if err != nil {
		return domain.User{}, domain.Author{}, fmt.Errorf("авторский профиль: %w", err)
	}
	s.bus.Publish(ctx, domain.UserRegistered{User: user})
	return user, author, nil
}
