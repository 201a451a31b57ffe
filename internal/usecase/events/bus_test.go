package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"news-portal/internal/domain"
)

type orderedHandler struct {
	name  string
	trace *[]string
	err   error
}

func (h *orderedHandler) HandleEvent(context.Context, domain.Event) error {
	*h.trace = append(*h.trace, h.name)
	return h.err
}

func TestPublishKeepsHandlerOrder(t *testing.T) {
	var trace []string
	bus := NewBus(zerolog.Nop(),
		&orderedHandler{name: "first", trace: &trace},
		&orderedHandler{name: "second", trace: &trace},
		&orderedHandler{name: "third", trace: &trace},
	)

	bus.Publish(context.Background(), domain.UserRegistered{User: domain.User{ID: 1}})

	want := []string{"first", "second", "third"}
	if len(trace) != len(want) {
		t.Fatalf("ожидали %d вызовов, получили %d", len(want), len(trace))
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("порядок обработчиков нарушен: %v", trace)
		}
	}
}

func TestPublishIsolatesHandlerError(t *testing.T) {
	var trace []string
	bus := NewBus(zerolog.Nop(),
		&orderedHandler{name: "failing", trace: &trace, err: errors.New("сбой")},
		&orderedHandler{name: "next", trace: &trace},
	)

	bus.Publish(context.Background(), domain.UserRegistered{User: domain.User{ID: 1}})

	if len(trace) != 2 || trace[1] != "next" {
		t.Fatalf("ошибка обработчика не должна прерывать остальных: %v", trace)
	}
}
