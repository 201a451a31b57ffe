package domain

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestPreviewShortContentUnchanged(t *testing.T) {
	post := Post{Content: "короткий текст"}
	if got := post.Preview(); got != post.Content {
		t.Fatalf("короткий текст не обрезается, получили %q", got)
	}
}

func TestPreviewTruncatesLongContent(t *testing.T) {
	post := Post{Content: strings.Repeat("ж", 200)}
	got := post.Preview()
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("обрезанный текст должен оканчиваться многоточием: %q", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != 124 {
		t.Fatalf("ожидали 124 руны до многоточия, получили %d", n)
	}
}

func TestPreviewExactBoundaryUnchanged(t *testing.T) {
	post := Post{Content: strings.Repeat("ж", 124)}
	if got := post.Preview(); got != post.Content {
		t.Fatalf("текст ровно на границе не обрезается, получили %q", got)
	}
}

func TestSubscriberActive(t *testing.T) {
	if !(Subscriber{}).Active() {
		t.Fatalf("подписка без даты отписки действует")
	}
	unsub := time.Now()
	if (Subscriber{UnsubscribedAt: &unsub}).Active() {
		t.Fatalf("подписка с датой отписки не действует")
	}
}
